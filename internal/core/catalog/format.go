package catalog

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies one of the image formats the catalog accepts.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatGIF  Format = "gif"
)

// MIME returns the IANA media type for a Format.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// extensionFormats maps accepted file extensions (lowercase, with the dot)
// to the format they claim to be. A file must match both its extension's
// claimed format and that format's magic bytes to be accepted.
var extensionFormats = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".webp": FormatWebP,
	".gif":  FormatGIF,
}

// FormatForExtension returns the format a path's extension claims, and
// whether that extension is one the catalog accepts at all.
func FormatForExtension(path string) (Format, bool) {
	f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// sniffLen is how many leading bytes are needed to identify the largest
// magic-byte signature among the accepted formats (WebP's "RIFF....WEBP").
const sniffLen = 12

// SniffLen is the number of leading bytes SniffFormat needs to see.
func SniffLen() int { return sniffLen }

// SniffFormat identifies a format from its magic bytes. header must contain
// at least SniffLen() bytes for WebP to be distinguishable; shorter headers
// still correctly identify JPEG/PNG/GIF, which have shorter signatures.
func SniffFormat(header []byte) (Format, bool) {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return FormatJPEG, true
	case len(header) >= 8 && bytes.Equal(header[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return FormatPNG, true
	case len(header) >= 6 && (bytes.HasPrefix(header, []byte("GIF87a")) || bytes.HasPrefix(header, []byte("GIF89a"))):
		return FormatGIF, true
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return FormatWebP, true
	default:
		return "", false
	}
}

// Accept reports whether a file should be accepted into the catalog: its
// extension must claim a supported format, and its magic bytes must confirm
// that same format. Extension and magic-byte format are required to agree
// so that e.g. a renamed .txt-as-.jpg doesn't slip into the catalog.
func Accept(path string, header []byte) bool {
	claimed, ok := FormatForExtension(path)
	if !ok {
		return false
	}
	sniffed, ok := SniffFormat(header)
	if !ok {
		return false
	}
	return claimed == sniffed
}
