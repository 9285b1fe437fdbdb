package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

const (
	maxImageSize = 5 << 20
	sniffLen     = 512
)

var imageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// readImage checks the declared size and detects the format from the leading
// bytes; the client's Content-Type is never trusted. The returned reader
// yields the whole upload again.
func readImage(r io.Reader, size int64) (string, io.Reader, error) {
	if size <= 0 || size > maxImageSize {
		return "", nil, fmt.Errorf("image must be between 1 byte and 5 MiB: %w", ErrValidation)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("read image: %w", err)
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	if !mimetype.EqualsAny(mt.String(), imageTypes...) {
		return "", nil, fmt.Errorf("unsupported image type %q: %w", mt.String(), ErrValidation)
	}
	return mt.String(), io.MultiReader(bytes.NewReader(head), r), nil
}
