// Package sniff performs the file-signature validation spec §6
// requires before extraction ever runs: declared extension and magic
// bytes must agree.
package sniff

import (
	"bytes"
	"strings"
)

// Format is one of the document formats this pipeline accepts.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
)

var extensions = map[string]Format{
	".pdf":  FormatPDF,
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".bmp":  FormatBMP,
	".gif":  FormatGIF,
	".webp": FormatWEBP,
}

// ExtensionFormat maps a filesystem extension (with or without the
// leading dot, case-insensitive) to the Format it declares, and
// whether the extension is recognized at all.
func ExtensionFormat(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	f, ok := extensions[ext]
	return f, ok
}

// Detect inspects the leading bytes of a buffer and returns the Format
// its magic-byte signature declares, per spec §6's exact signature
// list: %PDF, the PNG 8-byte header, the JPEG SOI marker, the TIFF
// byte-order markers, BM, GIF87a/GIF89a, and RIFF....WEBP.
func Detect(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF, true
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, true
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return FormatJPEG, true
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF, true
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP, true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF, true
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWEBP, true
	default:
		return "", false
	}
}

// Validate reports whether data's content signature matches the
// format declared by ext. A mismatch, or an unrecognized signature,
// is a validation error per spec §6 ("A mismatch between declared
// extension and content signature is a validation error").
func Validate(ext string, data []byte) error {
	declared, known := ExtensionFormat(ext)
	if !known {
		return &ValidationError{Reason: "unsupported extension: " + ext}
	}
	actual, recognized := Detect(data)
	if !recognized {
		return &ValidationError{Reason: "content signature not recognized for extension " + ext}
	}
	if declared != actual {
		return &ValidationError{Reason: "declared extension " + ext + " does not match content signature " + string(actual)}
	}
	return nil
}

// ValidationError is returned by Validate; the pipeline wraps it as an
// xerr.InvalidInput error.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
