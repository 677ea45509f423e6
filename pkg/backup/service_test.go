package backup_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/envelope"
	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
	"github.com/dmitrymomot/otpkeeper/pkg/otp"
	"github.com/dmitrymomot/otpkeeper/pkg/securestore"
	"github.com/dmitrymomot/otpkeeper/pkg/settings"
)

const password = "correct horse battery staple"

type device struct {
	repo     *account.Repository
	prefs    *settings.Service
	backups  *backup.Service
	secrets  *securestore.Memory
	metadata *localstore.Dir
}

func newDevice(t *testing.T, name string) *device {
	t.Helper()
	dir, err := localstore.NewDir(t.TempDir())
	require.NoError(t, err)
	secrets := securestore.NewMemory()
	repo := account.NewRepository(dir, secrets)
	prefs := settings.NewService(dir)
	return &device{
		repo:     repo,
		prefs:    prefs,
		secrets:  secrets,
		metadata: dir,
		backups: backup.NewService(repo,
			backup.WithPreferences(prefs),
			backup.WithCipher(envelope.New(envelope.WithIterations(1000))),
			backup.WithDeviceName(name),
			backup.WithClock(func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }),
		),
	}
}

func seed(t *testing.T, d *device) []account.Account {
	t.Helper()
	folder, err := d.repo.AddFolder(context.Background(), account.Folder{Name: "Work"})
	require.NoError(t, err)

	gh := account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP")
	gh.FolderID = &folder.ID
	gh.Favorite = true
	aws := account.New("AWS", "root", "GEZDGNBVGY3TQOJQ")
	aws.Type = otp.TypeHOTP
	aws.Counter = 7

	added, err := d.repo.AddMany(context.Background(), []account.Account{gh, aws})
	require.NoError(t, err)
	return added
}

func TestChecksum(t *testing.T) {
	t.Parallel()

	accounts := []account.Account{
		account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP"),
		account.New("AWS", "root", "GEZDGNBVGY3TQOJQ"),
	}
	want := envelope.Hash("GitHub:octocat:JBSWY3DPEHPK3PXP|AWS:root:GEZDGNBVGY3TQOJQ")
	assert.Equal(t, want, backup.Checksum(accounts))
	assert.Equal(t, envelope.Hash(""), backup.Checksum(nil))

	reversed := []account.Account{accounts[1], accounts[0]}
	assert.NotEqual(t, want, backup.Checksum(reversed), "order matters")
}

func TestService_ExportImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	original := seed(t, src)

	data, err := src.backups.Export(ctx, password, false)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "JBSWY3DPEHPK3PXP")

	dst := newDevice(t, "desktop")
	n, err := dst.backups.Import(ctx, data, password)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	imported, err := dst.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, imported, 2)

	for i, a := range imported {
		assert.NotEqual(t, original[i].ID, a.ID, "imported accounts get fresh ids")
		assert.NotEqual(t, uuid.Nil, a.ID)
		assert.Nil(t, a.FolderID, "folders are not part of a backup")
		assert.Equal(t, original[i].DedupKey(), a.DedupKey())
	}
	assert.True(t, imported[0].Favorite)
	assert.EqualValues(t, 7, imported[1].Counter)

	t.Run("second import is a no-op", func(t *testing.T) {
		n, err := dst.backups.Import(ctx, data, password)
		require.NoError(t, err)
		assert.Zero(t, n)

		count, err := dst.repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestService_ImportMergesWithExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	seed(t, src)
	data, err := src.backups.Export(ctx, password, false)
	require.NoError(t, err)

	dst := newDevice(t, "desktop")
	_, err = dst.repo.Add(ctx, account.New("GitHub", "octocat", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	_, err = dst.repo.Add(ctx, account.New("Local", "only", "MFRGGZDFMZTWQ2LK"))
	require.NoError(t, err)

	n, err := dst.backups.Import(ctx, data, password)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := dst.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestService_ImportFailuresLeaveStateUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	seed(t, src)
	data, err := src.backups.Export(ctx, password, false)
	require.NoError(t, err)

	tests := []struct {
		name     string
		data     func(t *testing.T) []byte
		password string
		wantErr  error
	}{
		{
			name:     "wrong password",
			data:     func(*testing.T) []byte { return data },
			password: "nope",
			wantErr:  envelope.ErrIntegrity,
		},
		{
			name:     "not an envelope",
			data:     func(*testing.T) []byte { return []byte("hello") },
			password: password,
			wantErr:  backup.ErrInvalidFormat,
		},
		{
			name: "tampered checksum",
			data: func(t *testing.T) []byte {
				snap, err := src.backups.Snapshot(ctx, false)
				require.NoError(t, err)
				snap.Checksum = envelope.Hash("something else")
				sealed, err := src.backups.Seal(snap, password)
				require.NoError(t, err)
				return sealed
			},
			password: password,
			wantErr:  backup.ErrChecksumMismatch,
		},
		{
			name: "unsupported snapshot version",
			data: func(t *testing.T) []byte {
				snap, err := src.backups.Snapshot(ctx, false)
				require.NoError(t, err)
				snap.Version = "9.9"
				sealed, err := src.backups.Seal(snap, password)
				require.NoError(t, err)
				return sealed
			},
			password: password,
			wantErr:  backup.ErrInvalidFormat,
		},
		{
			name: "encrypted garbage",
			data: func(t *testing.T) []byte {
				sealed, err := envelope.New(envelope.WithIterations(1000)).Seal([]byte("[1,2,3]"), password)
				require.NoError(t, err)
				return sealed
			},
			password: password,
			wantErr:  backup.ErrInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dst := newDevice(t, "desktop")

			n, err := dst.backups.Import(ctx, tt.data(t), tt.password)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, n)

			count, err := dst.repo.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
			assert.Zero(t, dst.secrets.Len())
		})
	}
}

func TestService_InvalidAccountAbortsWholeImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	snap := &backup.Snapshot{
		Version:    backup.FormatVersion,
		CreatedAt:  time.Now(),
		DeviceName: "laptop",
		Accounts: []account.Account{
			account.New("Good", "one", "JBSWY3DPEHPK3PXP"),
			account.New("Bad", "two", "not base32!"),
		},
	}
	snap.Checksum = backup.Checksum(snap.Accounts)
	data, err := src.backups.Seal(snap, password)
	require.NoError(t, err)

	dst := newDevice(t, "desktop")
	_, err = dst.backups.Import(ctx, data, password)
	require.ErrorIs(t, err, account.ErrInvalidAccount)

	count, err := dst.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_Settings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	seed(t, src)
	synced := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, src.prefs.Update(ctx, func(s *settings.Settings) {
		s.Theme = settings.ThemeDark
		s.ClipboardClearSeconds = 10
		s.CloudSync.LastSyncTime = &synced
	}))

	snap, err := src.backups.Snapshot(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, snap.Settings)
	assert.Nil(t, snap.Settings.CloudSync.LastSyncTime, "sync state stays on the device")
	assert.Equal(t, "laptop", snap.DeviceName)
	assert.Equal(t, backup.FormatVersion, snap.Version)

	data, err := src.backups.Export(ctx, password, true)
	require.NoError(t, err)

	t.Run("ignored unless requested", func(t *testing.T) {
		t.Parallel()
		dst := newDevice(t, "desktop")
		_, err := dst.backups.Import(ctx, data, password)
		require.NoError(t, err)
		assert.Equal(t, settings.ThemeSystem, dst.prefs.Get().Theme)
	})

	t.Run("restored on request", func(t *testing.T) {
		t.Parallel()
		dst := newDevice(t, "desktop")
		_, err := dst.backups.Import(ctx, data, password, backup.RestoreSettings())
		require.NoError(t, err)
		got := dst.prefs.Get()
		assert.Equal(t, settings.ThemeDark, got.Theme)
		assert.Equal(t, 10, got.ClipboardClearSeconds)
		assert.Nil(t, got.CloudSync.LastSyncTime)
	})

	t.Run("excluded from snapshot", func(t *testing.T) {
		t.Parallel()
		snap, err := src.backups.Snapshot(ctx, false)
		require.NoError(t, err)
		assert.Nil(t, snap.Settings)
	})
}

func TestService_SnapshotRefusesAccountWithoutSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	seed(t, src)
	lost, err := src.repo.Add(ctx, account.New("Lost", "someone", "MFRGGZDFMZTWQ2LK"))
	require.NoError(t, err)
	require.NoError(t, src.secrets.Remove(ctx, account.StoreKey(lost.ID)))

	reopened := backup.NewService(account.NewRepository(src.metadata, src.secrets),
		backup.WithCipher(envelope.New(envelope.WithIterations(1000))),
	)

	_, err = reopened.Snapshot(ctx, false)
	require.ErrorIs(t, err, backup.ErrMissingSecret)
	assert.Contains(t, err.Error(), "Lost: someone")
	assert.Contains(t, err.Error(), lost.ID.String())

	data, err := reopened.Export(ctx, password, false)
	require.ErrorIs(t, err, backup.ErrMissingSecret)
	assert.Nil(t, data)
}

type brokenDocs struct{}

func (brokenDocs) Read(context.Context, string) ([]byte, error) {
	return nil, localstore.ErrNotFound
}

func (brokenDocs) Write(context.Context, string, []byte) error {
	return assert.AnError
}

func TestService_SettingsFailureAddsNoAccounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	seed(t, src)
	data, err := src.backups.Export(ctx, password, true)
	require.NoError(t, err)

	dir, err := localstore.NewDir(t.TempDir())
	require.NoError(t, err)
	repo := account.NewRepository(dir, securestore.NewMemory())
	dst := backup.NewService(repo,
		backup.WithPreferences(settings.NewService(brokenDocs{})),
		backup.WithCipher(envelope.New(envelope.WithIterations(1000))),
	)

	n, err := dst.Import(ctx, data, password, backup.RestoreSettings())
	require.ErrorIs(t, err, backup.ErrSettingsRestore)
	assert.Zero(t, n)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_AccountFailureRollsBackSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := newDevice(t, "laptop")
	imported := settings.Default()
	imported.Theme = settings.ThemeDark
	snap := &backup.Snapshot{
		Version:  backup.FormatVersion,
		Accounts: []account.Account{account.New("Bad", "two", "not base32!")},
		Settings: &imported,
	}
	snap.Checksum = backup.Checksum(snap.Accounts)
	data, err := src.backups.Seal(snap, password)
	require.NoError(t, err)

	dst := newDevice(t, "desktop")
	n, err := dst.backups.Import(ctx, data, password, backup.RestoreSettings())
	require.ErrorIs(t, err, account.ErrInvalidAccount)
	assert.Zero(t, n)
	assert.Equal(t, settings.ThemeSystem, dst.prefs.Get().Theme)
}
