package otpkeeper

import "errors"

var (
	ErrInvalidConfig    = errors.New("otpkeeper: invalid configuration")
	ErrNoClipboard      = errors.New("otpkeeper: clipboard capability not configured")
	ErrNoScreenCapturer = errors.New("otpkeeper: screen capture capability not configured")
	ErrNoQRCode         = errors.New("otpkeeper: no otpauth QR code found")
)
