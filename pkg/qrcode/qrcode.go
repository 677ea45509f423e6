package qrcode

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"

	"github.com/dmitrymomot/otpkeeper/pkg/otp"
)

var (
	ErrEmptyContent = errors.New("qrcode: content cannot be empty")
	ErrEncode       = errors.New("qrcode: failed to generate image")
	ErrEmptyImage   = errors.New("qrcode: image is empty")
	ErrNoCode       = errors.New("qrcode: no QR code found in image")
	ErrNoDecoder    = errors.New("qrcode: no decoder configured")
)

const DefaultSize = 256

// Decoder extracts the text payload of the first QR code in an encoded
// image (PNG, JPEG or whatever the implementation supports). It returns an
// error matching ErrNoCode when the image holds no readable code.
type Decoder interface {
	Decode(ctx context.Context, image []byte) (string, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, image []byte) (string, error)

func (f DecoderFunc) Decode(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

// Encode returns a square PNG of size pixels at medium error recovery.
func Encode(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return png, nil
}

// DataURI returns Encode's PNG as a base64 data URI.
func DataURI(content string, size int) (string, error) {
	png, err := Encode(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// ReadURI decodes image and parses its payload as an otpauth URI.
func ReadURI(ctx context.Context, d Decoder, image []byte) (*otp.Key, error) {
	if d == nil {
		return nil, ErrNoDecoder
	}
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	text, err := d.Decode(ctx, image)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoCode
	}
	return otp.ParseURI(text)
}
