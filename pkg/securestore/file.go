package securestore

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
)

const fileDir = "secrets/"

// Documents is the sealed document store used by File.
type Documents interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// File stores one sealed document per key.
type File struct {
	docs Documents
}

// NewFile creates a File store. docs should encrypt at rest, normally a
// *localstore.Sealed.
func NewFile(docs Documents) *File {
	return &File{docs: docs}
}

func (f *File) Store(ctx context.Context, key, value string) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}
	return f.docs.Write(ctx, fileName(key), []byte(value))
}

func (f *File) Retrieve(ctx context.Context, key string) (string, error) {
	if err := checkKey(ctx, key); err != nil {
		return "", err
	}
	data, err := f.docs.Read(ctx, fileName(key))
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

func (f *File) Remove(ctx context.Context, key string) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}
	if err := f.docs.Delete(ctx, fileName(key)); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		return err
	}
	return nil
}

// fileName maps arbitrary keys to safe file names.
func fileName(key string) string {
	return fileDir + base64.RawURLEncoding.EncodeToString([]byte(key)) + ".dat"
}
