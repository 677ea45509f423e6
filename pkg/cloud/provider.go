package cloud

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// FileInfo describes a stored file. ID is what Download and Delete expect.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Size       int64     `json:"size"`
}

// Provider is a remote file store.
type Provider interface {
	// Name identifies the provider in settings and logs.
	Name() string
	IsAuthenticated() bool
	// Authenticate establishes a session. It may block on a flow owned by
	// the caller, such as an OAuth consent screen.
	Authenticate(ctx context.Context) error
	SignOut(ctx context.Context) error
	// Upload creates or replaces the named file.
	Upload(ctx context.Context, name string, data []byte) (*FileInfo, error)
	Download(ctx context.Context, id string) ([]byte, error)
	// FileInfo returns ErrNotFound when no file with that name exists.
	FileInfo(ctx context.Context, name string) (*FileInfo, error)
	Delete(ctx context.Context, id string) error
}

func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, "\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// classifyTransport maps errors shared by every networked provider.
func classifyTransport(err error) (error, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrNetwork, err), true
	}
	if errors.Is(err, context.Canceled) {
		return err, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Join(ErrNetwork, err), true
	}
	return nil, false
}
