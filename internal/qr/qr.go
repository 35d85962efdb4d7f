// Package qr renders guest passes and device-link codes as QR codes.
package qr

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels used when none is given
const DefaultSize = 256

// PNG encodes payload as a QR code image of size x size pixels
func PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty qr payload")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	return png, nil
}

// Terminal renders payload with half-height block characters for a terminal
func Terminal(payload string) (string, error) {
	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to generate qr: %w", err)
	}
	return code.ToSmallString(false), nil
}
