package account_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
	"github.com/dmitrymomot/otpkeeper/pkg/otp"
	"github.com/dmitrymomot/otpkeeper/pkg/securestore"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	dir     *localstore.Dir
	secrets *securestore.Memory
	repo    *account.Repository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir, err := localstore.NewDir(t.TempDir())
	require.NoError(t, err)
	secrets := securestore.NewMemory()
	return &env{
		dir:     dir,
		secrets: secrets,
		repo:    account.NewRepository(dir, secrets, account.WithClock(func() time.Time { return fixedNow })),
	}
}

func (e *env) reopen() *account.Repository {
	return account.NewRepository(e.dir, e.secrets)
}

type mockDocs struct {
	mock.Mock
}

func (m *mockDocs) Read(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockDocs) Write(ctx context.Context, name string, data []byte) error {
	return m.Called(ctx, name, data).Error(0)
}

func TestRepository_EmptyStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	accounts, err := e.repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	n, err := e.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_AddAndPersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	first, err := e.repo.Add(ctx, account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, fixedNow, first.CreatedAt)
	assert.Equal(t, 0, first.SortOrder)

	second, err := e.repo.Add(ctx, account.New("AWS", "root", "GEZDGNBVGY3TQOJQ"))
	require.NoError(t, err)
	assert.Equal(t, 1, second.SortOrder)

	t.Run("metadata holds no secrets", func(t *testing.T) {
		raw, err := e.dir.Read(ctx, account.DefaultDocument)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "octocat")
		assert.NotContains(t, string(raw), "JBSWY3DPEHPK3PXP")
		assert.NotContains(t, string(raw), "GEZDGNBVGY3TQOJQ")
	})

	t.Run("secrets live in the secure store", func(t *testing.T) {
		v, err := e.secrets.Retrieve(ctx, account.StoreKey(first.ID))
		require.NoError(t, err)
		assert.Equal(t, "JBSWY3DPEHPK3PXP", v)
	})

	t.Run("a new repository reloads the same state", func(t *testing.T) {
		accounts, err := e.reopen().List(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, first, accounts[0])
		assert.Equal(t, second, accounts[1])
	})
}

func TestRepository_AddRejectsInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.repo.Add(ctx, account.New("x", "y", "not base32!"))
	assert.ErrorIs(t, err, account.ErrInvalidAccount)

	folder := uuid.New()
	a := account.New("x", "y", "JBSWY3DPEHPK3PXP")
	a.FolderID = &folder
	_, err = e.repo.Add(ctx, a)
	assert.ErrorIs(t, err, account.ErrFolderNotFound)

	n, err := e.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, e.secrets.Len())
}

func TestRepository_AddManyIsAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.repo.AddMany(ctx, []account.Account{
		account.New("a", "1", "JBSWY3DPEHPK3PXP"),
		account.New("b", "2", "bad!"),
	})
	require.Error(t, err)

	n, err := e.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, e.secrets.Len())

	added, err := e.repo.AddMany(ctx, []account.Account{
		account.New("a", "1", "JBSWY3DPEHPK3PXP"),
		account.New("b", "2", "GEZDGNBVGY3TQOJQ"),
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, 0, added[0].SortOrder)
	assert.Equal(t, 1, added[1].SortOrder)
}

func TestRepository_MetadataWriteFailureRollsBackSecrets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	docs := &mockDocs{}
	docs.On("Read", mock.Anything, account.DefaultDocument).Return(nil, localstore.ErrNotFound)
	docs.On("Write", mock.Anything, account.DefaultDocument, mock.Anything).Return(errors.New("disk full"))

	secrets := securestore.NewMemory()
	repo := account.NewRepository(docs, secrets)

	_, err := repo.Add(ctx, account.New("x", "y", "JBSWY3DPEHPK3PXP"))
	require.ErrorIs(t, err, account.ErrPersist)
	assert.Zero(t, secrets.Len())

	accounts, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestRepository_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	a, err := e.repo.Add(ctx, account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	a.AccountName = "hubot"
	a.SecretKey = "GEZDGNBVGY3TQOJQ"
	a.CreatedAt = time.Time{}
	require.NoError(t, e.repo.Update(ctx, a))

	got, err := e.reopen().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "hubot", got.AccountName)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", got.SecretKey)
	assert.Equal(t, fixedNow, got.CreatedAt.UTC(), "creation time is kept")

	missing := account.New("x", "y", "JBSWY3DPEHPK3PXP")
	missing.ID = uuid.New()
	assert.ErrorIs(t, e.repo.Update(ctx, missing), account.ErrNotFound)
}

func TestRepository_UpdateRestoresSecretOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	docs := &mockDocs{}
	docs.On("Read", mock.Anything, account.DefaultDocument).Return(nil, localstore.ErrNotFound)
	docs.On("Write", mock.Anything, account.DefaultDocument, mock.Anything).Return(nil).Once()
	docs.On("Write", mock.Anything, account.DefaultDocument, mock.Anything).Return(errors.New("disk full"))

	secrets := securestore.NewMemory()
	repo := account.NewRepository(docs, secrets)

	a, err := repo.Add(ctx, account.New("x", "y", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	a.SecretKey = "GEZDGNBVGY3TQOJQ"
	require.ErrorIs(t, repo.Update(ctx, a), account.ErrPersist)

	v, err := secrets.Retrieve(ctx, account.StoreKey(a.ID))
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", v)

	got, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got.SecretKey)
}

func TestRepository_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	a, err := e.repo.Add(ctx, account.New("x", "y", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	require.NoError(t, e.repo.Delete(ctx, a.ID))
	_, err = e.repo.Get(ctx, a.ID)
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = e.secrets.Retrieve(ctx, account.StoreKey(a.ID))
	assert.ErrorIs(t, err, securestore.ErrNotFound)

	assert.ErrorIs(t, e.repo.Delete(ctx, a.ID), account.ErrNotFound)
}

func TestRepository_SortOrderAndFavorites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	added, err := e.repo.AddMany(ctx, []account.Account{
		account.New("a", "1", "JBSWY3DPEHPK3PXP"),
		account.New("b", "2", "GEZDGNBVGY3TQOJQ"),
		account.New("c", "3", "MZXW6YTBOI======"),
	})
	require.NoError(t, err)

	require.NoError(t, e.repo.UpdateSortOrder(ctx, []account.Position{
		{ID: added[0].ID, SortOrder: 2},
		{ID: added[2].ID, SortOrder: 0},
		{ID: uuid.New(), SortOrder: 9},
	}))

	list, err := e.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].Issuer, list[1].Issuer, list[2].Issuer})

	_, err = e.repo.SetFavorite(ctx, added[1].ID, true)
	require.NoError(t, err)
	favorites, err := e.repo.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "b", favorites[0].Issuer)

	next, err := e.repo.Add(ctx, account.New("d", "4", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	assert.Equal(t, 3, next.SortOrder)
}

func TestRepository_IncrementCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	h := account.New("Bank", "jane", "JBSWY3DPEHPK3PXP")
	h.Type = otp.TypeHOTP
	h.Period = 0
	h, err := e.repo.Add(ctx, h)
	require.NoError(t, err)

	for want := int64(1); want <= 3; want++ {
		got, err := e.repo.IncrementCounter(ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Counter)
	}

	reloaded, err := e.reopen().Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reloaded.Counter)

	totp, err := e.repo.Add(ctx, account.New("x", "y", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	_, err = e.repo.IncrementCounter(ctx, totp.ID)
	assert.ErrorIs(t, err, account.ErrNotHOTP)

	_, err = e.repo.IncrementCounter(ctx, uuid.New())
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestRepository_MarkUsed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	a, err := e.repo.Add(ctx, account.New("x", "y", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	assert.Nil(t, a.LastUsedAt)

	used, err := e.repo.MarkUsed(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, used.LastUsedAt)
	assert.Equal(t, fixedNow, *used.LastUsedAt)
}

func TestRepository_Folders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	work, err := e.repo.AddFolder(ctx, account.Folder{Name: "Work"})
	require.NoError(t, err)
	personal, err := e.repo.AddFolder(ctx, account.Folder{Name: "Personal"})
	require.NoError(t, err)
	assert.Equal(t, 1, personal.SortOrder)

	_, err = e.repo.AddFolder(ctx, account.Folder{Name: "  "})
	assert.ErrorIs(t, err, account.ErrInvalidFolder)

	a := account.New("GitHub", "work", "JBSWY3DPEHPK3PXP")
	a.FolderID = &work.ID
	a, err = e.repo.Add(ctx, a)
	require.NoError(t, err)
	b, err := e.repo.Add(ctx, account.New("GitHub", "home", "GEZDGNBVGY3TQOJQ"))
	require.NoError(t, err)

	inWork, err := e.repo.ByFolder(ctx, &work.ID)
	require.NoError(t, err)
	require.Len(t, inWork, 1)
	assert.Equal(t, a.ID, inWork[0].ID)

	uncategorized, err := e.repo.ByFolder(ctx, nil)
	require.NoError(t, err)
	require.Len(t, uncategorized, 1)
	assert.Equal(t, b.ID, uncategorized[0].ID)

	_, err = e.repo.MoveToFolder(ctx, b.ID, &personal.ID)
	require.NoError(t, err)
	n, err := e.repo.CountInFolder(ctx, &personal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	work.Name = "Office"
	require.NoError(t, e.repo.UpdateFolder(ctx, work))
	got, err := e.repo.GetFolder(ctx, work.ID)
	require.NoError(t, err)
	assert.Equal(t, "Office", got.Name)

	require.NoError(t, e.repo.DeleteFolder(ctx, work.ID))
	_, err = e.repo.GetFolder(ctx, work.ID)
	assert.ErrorIs(t, err, account.ErrFolderNotFound)

	moved, err := e.repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, moved.FolderID, "accounts of a deleted folder become uncategorized")

	folders, err := e.reopen().Folders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Personal", folders[0].Name)

	assert.ErrorIs(t, e.repo.DeleteFolder(ctx, work.ID), account.ErrFolderNotFound)
}

func TestRepository_AddMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.repo.Add(ctx, account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	added, err := e.repo.AddMissing(ctx, []account.Account{
		account.New("GitHub", "octocat", "jbsw y3dp ehpk 3pxp"),
		account.New("AWS", "root", "GEZDGNBVGY3TQOJQ"),
		account.New("AWS", "root", "GEZDGNBVGY3TQOJQ"),
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "AWS", added[0].Issuer)

	again, err := e.repo.AddMissing(ctx, []account.Account{account.New("AWS", "root", "GEZDGNBVGY3TQOJQ")})
	require.NoError(t, err)
	assert.Empty(t, again)

	n, err := e.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRepository_MissingSecretStillListed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	a, err := e.repo.Add(ctx, account.New("x", "y", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	require.NoError(t, e.secrets.Remove(ctx, account.StoreKey(a.ID)))

	got, err := e.reopen().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SecretKey)
}

func TestRepository_CorruptMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.dir.Write(ctx, account.DefaultDocument, []byte("{not json")))
	_, err := e.repo.List(ctx)
	assert.ErrorIs(t, err, account.ErrCorruptMetadata)
}

func TestRepository_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.repo.List(ctx)
	require.NoError(t, err)

	other := e.reopen()
	_, err = other.Add(ctx, account.New("x", "y", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	n, err := e.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "cached state until refresh")

	e.repo.Refresh()
	n, err = e.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_ConcurrentAdds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.repo.Add(ctx, account.New("issuer", strings.Repeat("x", i+1), "JBSWY3DPEHPK3PXP"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := e.reopen().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 20)
	orders := map[int]bool{}
	for _, a := range list {
		orders[a.SortOrder] = true
	}
	assert.Len(t, orders, 20, "sort orders are unique")
}

func TestRepository_ModifiedAt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	at, err := e.repo.ModifiedAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	_, err = e.repo.Add(ctx, account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	at, err = e.repo.ModifiedAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(fixedNow))

	at, err = e.reopen().ModifiedAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(fixedNow), "stored with the metadata")
}

func TestRepository_ModifiedAtUnchangedOnFailedWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	docs := &mockDocs{}
	docs.On("Read", mock.Anything, account.DefaultDocument).Return(nil, localstore.ErrNotFound)
	docs.On("Write", mock.Anything, account.DefaultDocument, mock.Anything).Return(errors.New("disk full"))
	repo := account.NewRepository(docs, securestore.NewMemory(), account.WithClock(func() time.Time { return fixedNow }))

	_, err := repo.Add(ctx, account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP"))
	require.ErrorIs(t, err, account.ErrPersist)

	at, err := repo.ModifiedAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}
