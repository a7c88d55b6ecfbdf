package qrcode

import (
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

var ErrEmptyContent = errors.New("qr content is empty")

// Encoder renders artifact references as PNG QR codes.
type Encoder struct {
	level goqrcode.RecoveryLevel
}

func NewEncoder() *Encoder {
	return &Encoder{level: goqrcode.Medium}
}

// PNG encodes content into a square PNG of size pixels. size is clamped to [MinSize, MaxSize].
func (e *Encoder) PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	png, err := goqrcode.Encode(content, e.level, ClampSize(size))
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}
