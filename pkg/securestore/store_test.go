package securestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/dmitrymomot/otpkeeper/pkg/envelope"
	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
	"github.com/dmitrymomot/otpkeeper/pkg/securestore"
)

func newFileStore(t *testing.T) *securestore.File {
	t.Helper()
	dir, err := localstore.NewDir(t.TempDir())
	require.NoError(t, err)
	sealed := localstore.NewSealed(dir, envelope.New(envelope.WithIterations(1000)), "test-device-protector-0123456789abcdef")
	return securestore.NewFile(sealed)
}

// exerciseStore checks the contract shared by every backend.
func exerciseStore(t *testing.T, s securestore.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Retrieve(ctx, "secret_missing")
	assert.ErrorIs(t, err, securestore.ErrNotFound)

	require.NoError(t, s.Store(ctx, "secret_a", "JBSWY3DPEHPK3PXP"))
	v, err := s.Retrieve(ctx, "secret_a")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", v)

	require.NoError(t, s.Store(ctx, "secret_a", "GEZDGNBVGY3TQOJQ"))
	v, err = s.Retrieve(ctx, "secret_a")
	require.NoError(t, err)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", v)

	require.NoError(t, s.Store(ctx, "secret_empty", ""))
	v, err = s.Retrieve(ctx, "secret_empty")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Remove(ctx, "secret_a"))
	_, err = s.Retrieve(ctx, "secret_a")
	assert.ErrorIs(t, err, securestore.ErrNotFound)
	require.NoError(t, s.Remove(ctx, "secret_a"), "removing twice is fine")

	assert.ErrorIs(t, s.Store(ctx, " ", "x"), securestore.ErrEmptyKey)
	_, err = s.Retrieve(ctx, "")
	assert.ErrorIs(t, err, securestore.ErrEmptyKey)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Store(canceled, "secret_b", "x"), context.Canceled)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	m := securestore.NewMemory()
	exerciseStore(t, m)
	assert.Equal(t, 1, m.Len())
}

func TestFile(t *testing.T) {
	t.Parallel()
	exerciseStore(t, newFileStore(t))
}

func TestFile_KeysAreNotFileNames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newFileStore(t)

	require.NoError(t, s.Store(ctx, "../../escape", "v"))
	v, err := s.Retrieve(ctx, "../../escape")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, securestore.NewKeyring("otpkeeper-test"))
}

func TestKeyring_Unavailable(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)
	t.Cleanup(keyring.MockInit)

	s := securestore.NewKeyring("")
	ctx := context.Background()

	assert.ErrorIs(t, s.Store(ctx, "k", "v"), securestore.ErrUnavailable)
	_, err := s.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, securestore.ErrUnavailable)
	assert.ErrorIs(t, s.Remove(ctx, "k"), securestore.ErrUnavailable)
}
