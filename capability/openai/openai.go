// Package openai adapts github.com/openai/openai-go/v3's chat
// completion client to the capability.VisionClient contract, the way
// Tangerg/lynx/ai/extensions/models/openai builds multimodal content
// parts for a chat request.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
)

// Client adapts an openai.Client to capability.VisionClient for the
// VisionAI extraction strategy (spec §4.2).
type Client struct {
	inner openai.Client
	model string
}

// New builds a Client from request options (API key, base URL, …) and
// the chat model to use for page analysis.
func New(model string, opts ...option.RequestOption) *Client {
	return &Client{
		inner: openai.NewClient(opts...),
		model: model,
	}
}

// AnalyzePage sends one page image plus prompt as a multimodal user
// message and returns the model's raw text reply, which the caller is
// expected to decode as structured JSON (see
// Tangerg/lynx/ai/model/converter.JSONConverter).
func (c *Client) AnalyzePage(ctx context.Context, page capability.PageImage, prompt string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", page.Mime, base64.StdEncoding.EncodeToString(page.Bytes))

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				{
					OfText: &openai.ChatCompletionContentPartTextParam{
						Text: prompt,
					},
				},
				{
					OfImageURL: &openai.ChatCompletionContentPartImageParam{
						ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
							URL: dataURL,
						},
					},
				},
			}),
		},
	}

	resp, err := c.inner.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: analyze page %d: %w", page.Page, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: analyze page %d: empty response", page.Page)
	}
	return resp.Choices[0].Message.Content, nil
}
