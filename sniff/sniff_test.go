package sniff_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/sniff"
	"github.com/stretchr/testify/assert"
)

func TestDetectRecognizesEachSignature(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want sniff.Format
	}{
		{"pdf", []byte("%PDF-1.7 rest of file"), sniff.FormatPDF},
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), sniff.FormatPNG},
		{"jpeg", []byte("\xff\xd8\xffrest"), sniff.FormatJPEG},
		{"tiff-le", []byte("II*\x00rest"), sniff.FormatTIFF},
		{"tiff-be", []byte("MM\x00*rest"), sniff.FormatTIFF},
		{"bmp", []byte("BMrest"), sniff.FormatBMP},
		{"gif87", []byte("GIF87arest"), sniff.FormatGIF},
		{"gif89", []byte("GIF89arest"), sniff.FormatGIF},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPrest"), sniff.FormatWEBP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := sniff.Detect(tc.data)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetectRejectsUnknownSignature(t *testing.T) {
	_, ok := sniff.Detect([]byte("not a real document"))
	assert.False(t, ok)
}

func TestValidateAcceptsMatchingExtensionAndSignature(t *testing.T) {
	err := sniff.Validate(".pdf", []byte("%PDF-1.4"))
	assert.NoError(t, err)
}

func TestValidateRejectsMismatchedExtension(t *testing.T) {
	err := sniff.Validate(".png", []byte("%PDF-1.4"))
	assert.Error(t, err)
}

func TestValidateRejectsUnsupportedExtension(t *testing.T) {
	err := sniff.Validate(".docx", []byte("whatever"))
	assert.Error(t, err)
}
