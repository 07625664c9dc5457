// Package encoding provides text decoding helpers for the asset text formats.
package encoding

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInvalidUTF8 is returned when input is neither BOM-marked UTF-16 nor
// valid UTF-8.
var ErrInvalidUTF8 = encoding.ErrInvalidUTF8

// decoder honours a UTF-8 or UTF-16 byte order mark and validates
// everything else as UTF-8. The BOM itself is dropped.
func decoder() transform.Transformer {
	return unicode.BOMOverride(encoding.UTF8Validator)
}

// NewReader wraps r so that reads yield validated UTF-8 text.
// Read errors on malformed input wrap ErrInvalidUTF8.
func NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, decoder())
}

// Decode converts raw file bytes to UTF-8 text.
func Decode(data []byte) (string, error) {
	result, _, err := transform.Bytes(decoder(), data)
	if err != nil {
		return "", err
	}
	return string(result), nil
}

// IsInvalid reports whether err came from malformed text.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidUTF8)
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
