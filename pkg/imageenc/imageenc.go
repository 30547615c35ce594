// Package imageenc turns uploaded photos into self-contained data URLs that
// can be stored inline with an issue row.
package imageenc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrEmpty is returned for zero-length uploads.
	ErrEmpty = errors.New("image is empty")
	// ErrNotImage is returned when the payload does not sniff as an image.
	ErrNotImage = errors.New("file is not an image")
	// ErrTooLarge is returned when the payload exceeds the configured limit.
	ErrTooLarge = errors.New("image exceeds size limit")
)

// Encoder validates and encodes photos.
type Encoder struct {
	maxBytes int64
}

// New returns an encoder rejecting payloads above maxBytes. A non-positive
// limit disables the check.
func New(maxBytes int64) *Encoder {
	return &Encoder{maxBytes: maxBytes}
}

// Validate checks size and content type, returning the sniffed MIME type.
func (e *Encoder) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if e != nil && e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), e.maxBytes)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mime.String())
	}
	return mime.String(), nil
}

// DataURL validates data and renders it as data:<mime>;base64,<payload>.
func (e *Encoder) DataURL(data []byte) (string, error) {
	mime, err := e.Validate(data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(mime) + 13 + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String(), nil
}
