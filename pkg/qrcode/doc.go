// Package qrcode renders otpauth URIs as QR images and reads them back
// through a pluggable Decoder.
//
// Encoding is handled by github.com/skip2/go-qrcode. Decoding needs an image
// recognizer, which the package does not ship: callers supply one that
// satisfies Decoder.
//
//	png, err := qrcode.Encode(account.URI(), 256)
//	uri, err := qrcode.DataURI(account.URI(), 256) // for <img src=...>
//
//	key, err := qrcode.ReadURI(ctx, decoder, screenshot)
package qrcode
