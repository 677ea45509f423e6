package cloud

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
)

const LocalDriver = "local"

// LocalProvider stores files in a directory on this machine.
type LocalProvider struct {
	dir    *localstore.Dir
	signed atomic.Bool
}

// NewLocalProvider creates the directory when missing.
func NewLocalProvider(baseDir string) (*LocalProvider, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: empty sync directory", ErrInvalidConfig)
	}
	dir, err := localstore.NewDir(baseDir)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	p := &LocalProvider{dir: dir}
	p.signed.Store(true)
	return p, nil
}

func (p *LocalProvider) Name() string { return LocalDriver }

func (p *LocalProvider) IsAuthenticated() bool { return p.signed.Load() }

func (p *LocalProvider) Authenticate(context.Context) error {
	p.signed.Store(true)
	return nil
}

func (p *LocalProvider) SignOut(context.Context) error {
	p.signed.Store(false)
	return nil
}

func (p *LocalProvider) Upload(ctx context.Context, name string, data []byte) (*FileInfo, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := p.dir.Write(ctx, name, data); err != nil {
		return nil, p.classify(err)
	}
	return p.FileInfo(ctx, name)
}

// Download reads a file. IDs are file names for this provider.
func (p *LocalProvider) Download(ctx context.Context, id string) ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	name, err := cleanName(id)
	if err != nil {
		return nil, err
	}
	data, err := p.dir.Read(ctx, name)
	if err != nil {
		return nil, p.classify(err)
	}
	return data, nil
}

func (p *LocalProvider) FileInfo(ctx context.Context, name string) (*FileInfo, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	entry, err := p.dir.Stat(ctx, name)
	if err != nil {
		return nil, p.classify(err)
	}
	return &FileInfo{
		ID:         name,
		Name:       name,
		ModifiedAt: entry.ModifiedAt,
		Size:       entry.Size,
	}, nil
}

func (p *LocalProvider) Delete(ctx context.Context, id string) error {
	if err := p.check(); err != nil {
		return err
	}
	name, err := cleanName(id)
	if err != nil {
		return err
	}
	if err := p.dir.Delete(ctx, name); err != nil {
		return p.classify(err)
	}
	return nil
}

func (p *LocalProvider) check() error {
	if !p.signed.Load() {
		return fmt.Errorf("%w: signed out", ErrAuthentication)
	}
	return nil
}

func (p *LocalProvider) classify(err error) error {
	switch {
	case errors.Is(err, localstore.ErrNotFound):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, localstore.ErrInvalidPath):
		return errors.Join(ErrInvalidName, err)
	}
	return err
}
