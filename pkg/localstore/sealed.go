package localstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/otpkeeper/pkg/envelope"
)

const protectorSize = 32

// Sealed stores documents encrypted with a device protector.
type Sealed struct {
	dir       *Dir
	cipher    *envelope.Cipher
	protector string
}

// NewSealed wraps dir. Documents written through it can only be read back
// with the same protector.
func NewSealed(dir *Dir, cipher *envelope.Cipher, protector string) *Sealed {
	return &Sealed{dir: dir, cipher: cipher, protector: protector}
}

// Read decrypts a document.
func (s *Sealed) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := s.dir.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	plain, err := s.cipher.Open(data, s.protector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedToRead, name, err)
	}
	return plain, nil
}

// Write encrypts and atomically stores a document.
func (s *Sealed) Write(ctx context.Context, name string, data []byte) error {
	sealed, err := s.cipher.Seal(data, s.protector)
	if err != nil {
		return errors.Join(ErrFailedToWrite, err)
	}
	return s.dir.Write(ctx, name, sealed)
}

// Delete removes a document.
func (s *Sealed) Delete(ctx context.Context, name string) error {
	return s.dir.Delete(ctx, name)
}

// LoadOrCreateProtector returns the device protector stored under name,
// generating and persisting a random one when none exists yet.
func LoadOrCreateProtector(ctx context.Context, dir *Dir, name string) (string, error) {
	data, err := dir.Read(ctx, name)
	switch {
	case err == nil:
		protector := strings.TrimSpace(string(data))
		if len(protector) < protectorSize {
			return "", fmt.Errorf("%w: %s is too short", ErrInvalidProtector, name)
		}
		return protector, nil
	case !errors.Is(err, ErrNotFound):
		return "", err
	}

	raw := make([]byte, protectorSize)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Join(ErrInvalidProtector, err)
	}
	protector := base64.RawURLEncoding.EncodeToString(raw)
	if err := dir.Write(ctx, name, []byte(protector)); err != nil {
		return "", err
	}
	return protector, nil
}
