package securestore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/otpkeeper/pkg/securestore"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Store(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockStore) Retrieve(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Remove(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

var errVault = errors.New("vault locked")

func TestFallback_Contract(t *testing.T) {
	t.Parallel()
	exerciseStore(t, securestore.NewFallback(securestore.NewMemory(), securestore.NewMemory()))
}

func TestFallback_PrimaryHealthy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := securestore.NewMemory()
	secondary := securestore.NewMemory()
	require.NoError(t, secondary.Store(ctx, "k", "stale"))

	f := securestore.NewFallback(primary, secondary)
	require.NoError(t, f.Store(ctx, "k", "fresh"))

	v, err := primary.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	_, err = secondary.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, securestore.ErrNotFound, "stale fallback copy is dropped")
}

func TestFallback_PrimaryFailing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := &mockStore{}
	primary.On("Store", mock.Anything, "k", "v").Return(errVault)
	primary.On("Remove", mock.Anything, "k").Return(errVault)
	primary.On("Retrieve", mock.Anything, "k").Return("", errVault)

	secondary := securestore.NewMemory()
	f := securestore.NewFallback(primary, secondary)

	require.NoError(t, f.Store(ctx, "k", "v"))
	v, err := secondary.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	f.Purge()
	v, err = f.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, f.Remove(ctx, "k"))
	_, err = secondary.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, securestore.ErrNotFound)
}

func TestFallback_ReadsFallbackWhenPrimaryMisses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary := securestore.NewMemory()
	secondary := securestore.NewMemory()
	require.NoError(t, secondary.Store(ctx, "legacy", "v"))

	f := securestore.NewFallback(primary, secondary)
	v, err := f.Retrieve(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestFallback_BothFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errDisk := errors.New("disk full")

	primary := &mockStore{}
	primary.On("Store", mock.Anything, "k", "v").Return(errVault)
	primary.On("Retrieve", mock.Anything, "k").Return("", errVault)
	primary.On("Remove", mock.Anything, "k").Return(errVault)

	secondary := &mockStore{}
	secondary.On("Store", mock.Anything, "k", "v").Return(errDisk)
	secondary.On("Retrieve", mock.Anything, "k").Return("", errDisk)
	secondary.On("Remove", mock.Anything, "k").Return(errDisk)

	f := securestore.NewFallback(primary, secondary)

	err := f.Store(ctx, "k", "v")
	assert.ErrorIs(t, err, errVault)
	assert.ErrorIs(t, err, errDisk)

	_, err = f.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, errVault)
	assert.ErrorIs(t, err, errDisk)

	err = f.Remove(ctx, "k")
	assert.ErrorIs(t, err, errVault)
	assert.ErrorIs(t, err, errDisk)
}

func TestFallback_Cache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := &mockStore{}
	primary.On("Retrieve", mock.Anything, "k").Return("cached", nil).Once()
	primary.On("Store", mock.Anything, "k", "new").Return(nil).Once()
	secondary := &mockStore{}
	secondary.On("Retrieve", mock.Anything, "k").Return("", securestore.ErrNotFound).Once()
	secondary.On("Remove", mock.Anything, "k").Return(nil)

	f := securestore.NewFallback(primary, secondary, securestore.WithCacheSize(2))

	for range 3 {
		v, err := f.Retrieve(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "cached", v)
	}
	primary.AssertNumberOfCalls(t, "Retrieve", 1)
	secondary.AssertNumberOfCalls(t, "Retrieve", 1)

	require.NoError(t, f.Store(ctx, "k", "new"))
	v, err := f.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	primary.AssertNumberOfCalls(t, "Retrieve", 1)
}

func TestFallback_CacheEviction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := securestore.NewMemory()
	f := securestore.NewFallback(primary, securestore.NewMemory(), securestore.WithCacheSize(1))

	require.NoError(t, f.Store(ctx, "a", "1"))
	require.NoError(t, f.Store(ctx, "b", "2"))

	// "a" was evicted, so the value comes from the backend.
	require.NoError(t, primary.Store(ctx, "a", "changed"))
	v, err := f.Retrieve(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "changed", v)
}

// lockable is an in-memory vault that rejects every call while locked.
type lockable struct {
	*securestore.Memory
	locked bool
}

func (l *lockable) Store(ctx context.Context, key, value string) error {
	if l.locked {
		return errVault
	}
	return l.Memory.Store(ctx, key, value)
}

func (l *lockable) Retrieve(ctx context.Context, key string) (string, error) {
	if l.locked {
		return "", errVault
	}
	return l.Memory.Retrieve(ctx, key)
}

func (l *lockable) Remove(ctx context.Context, key string) error {
	if l.locked {
		return errVault
	}
	return l.Memory.Remove(ctx, key)
}

func TestFallback_ValueWrittenWhileVaultLockedWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vault := &lockable{Memory: securestore.NewMemory()}
	file := securestore.NewMemory()

	require.NoError(t, securestore.NewFallback(vault, file).Store(ctx, "k", "old"))

	vault.locked = true
	require.NoError(t, securestore.NewFallback(vault, file).Store(ctx, "k", "new"))
	vault.locked = false

	f := securestore.NewFallback(vault, file)
	v, err := f.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	moved, err := vault.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", moved, "value moves back to the vault once it is reachable")
	_, err = file.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, securestore.ErrNotFound)

	v, err = securestore.NewFallback(vault, file).Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestFallback_StaleFallbackCopyIsOverwritten(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := securestore.NewMemory()
	secondary := &mockStore{}
	secondary.On("Remove", mock.Anything, "k").Return(errors.New("permission denied"))
	secondary.On("Store", mock.Anything, "k", "new").Return(nil).Once()

	f := securestore.NewFallback(primary, secondary)
	require.NoError(t, f.Store(ctx, "k", "new"))
	secondary.AssertExpectations(t)

	failing := &mockStore{}
	failing.On("Remove", mock.Anything, "k").Return(errors.New("permission denied"))
	failing.On("Store", mock.Anything, "k", "new").Return(errors.New("read-only file system"))

	err := securestore.NewFallback(securestore.NewMemory(), failing).Store(ctx, "k", "new")
	require.ErrorIs(t, err, securestore.ErrStaleCopy)
}
