package secret

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	DefaultSize = 20 // 160-bit secret, RFC 4226 recommendation
	MinSize     = 10 // 80 bits, the RFC 4226 lower bound
	MaxSize     = 64
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Normalize strips whitespace and dashes and upper-cases the rest.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Decode normalizes s and unpacks its 5-bit groups into bytes.
func Decode(s string) ([]byte, error) {
	s = strings.TrimRight(Normalize(s), "=")
	if s == "" {
		return nil, ErrEmpty
	}

	out := make([]byte, 0, len(s)*5/8)
	var buffer uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(alphabet, s[i])
		if v < 0 {
			return nil, fmt.Errorf("%w: unexpected symbol %q at position %d", ErrInvalidFormat, s[i], i)
		}
		buffer = buffer<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>bits))
			buffer &= 1<<bits - 1
		}
	}
	return out, nil
}

// Encode returns the unpadded Base32 form of key.
func Encode(key []byte) string {
	return encoding.EncodeToString(key)
}

// Validate reports whether s decodes to at least MinSize bytes.
func Validate(s string) bool {
	key, err := Decode(s)
	return err == nil && len(key) >= MinSize
}

// Generate returns a random Base32 secret of size bytes.
// A non-positive size selects DefaultSize.
func Generate(size int) (string, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return "", fmt.Errorf("%w: %d bytes, want %d..%d", ErrInvalidSize, size, MinSize, MaxSize)
	}

	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return "", errors.Join(ErrFailedToGenerate, err)
	}
	return Encode(key), nil
}
