package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/envelope"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
	"github.com/dmitrymomot/otpkeeper/pkg/settings"
)

// Accounts is the part of the account repository a backup needs.
type Accounts interface {
	List(ctx context.Context) ([]account.Account, error)
	AddMissing(ctx context.Context, accounts []account.Account) ([]account.Account, error)
}

// Preferences is the part of the settings service a backup needs.
type Preferences interface {
	Get() settings.Settings
	Restore(ctx context.Context, s settings.Settings) error
}

// Service builds, seals, opens and merges snapshots.
type Service struct {
	accounts   Accounts
	prefs      Preferences
	cipher     *envelope.Cipher
	deviceName string
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Service)

// WithPreferences enables settings export and restore.
func WithPreferences(p Preferences) Option {
	return func(s *Service) { s.prefs = p }
}

func WithCipher(c *envelope.Cipher) Option {
	return func(s *Service) {
		if c != nil {
			s.cipher = c
		}
	}
}

func WithDeviceName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.deviceName = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(accounts Accounts, opts ...Option) *Service {
	s := &Service{
		accounts:   accounts,
		cipher:     envelope.New(),
		deviceName: hostname(),
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("backup"))
	return s
}

// Snapshot captures every account, and the settings when requested.
// An account whose secret could not be loaded fails the snapshot, since no
// other device could import it.
func (s *Service) Snapshot(ctx context.Context, includeSettings bool) (*Snapshot, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if strings.TrimSpace(a.SecretKey) == "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrMissingSecret, a.DisplayName(), a.ID)
		}
	}

	snap := &Snapshot{
		Version:    FormatVersion,
		CreatedAt:  s.now().UTC(),
		DeviceName: s.deviceName,
		Accounts:   accounts,
		Checksum:   Checksum(accounts),
	}
	if includeSettings && s.prefs != nil {
		p := s.prefs.Get()
		p.CloudSync.LastSyncTime = nil
		snap.Settings = &p
	}
	return snap, nil
}

// Seal serializes and encrypts a snapshot.
func (s *Service) Seal(snap *Snapshot, password string) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Join(ErrInvalidFormat, err)
	}
	return s.cipher.Seal(payload, password)
}

// Open decrypts and validates a backup file without touching local state.
func (s *Service) Open(data []byte, password string) (*Snapshot, error) {
	env, err := envelope.Parse(data)
	if err != nil {
		return nil, errors.Join(ErrInvalidFormat, err)
	}
	payload, err := s.cipher.Decrypt(env, password)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, errors.Join(ErrInvalidFormat, err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %q", ErrInvalidFormat, snap.Version)
	}
	if snap.Accounts == nil {
		snap.Accounts = []account.Account{}
	}
	if !snap.Verify() {
		return nil, ErrChecksumMismatch
	}
	return &snap, nil
}

// Export snapshots and seals in one step.
func (s *Service) Export(ctx context.Context, password string, includeSettings bool) ([]byte, error) {
	snap, err := s.Snapshot(ctx, includeSettings)
	if err != nil {
		return nil, err
	}
	data, err := s.Seal(snap, password)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "backup exported", logger.Count(len(snap.Accounts)))
	return data, nil
}

// ImportOption tunes Import and Merge.
type ImportOption func(*importConfig)

type importConfig struct {
	restoreSettings bool
}

// RestoreSettings also applies the snapshot's settings, if it carries any.
func RestoreSettings() ImportOption {
	return func(c *importConfig) { c.restoreSettings = true }
}

// Import opens a backup and adds the accounts not present locally.
// It returns the number of accounts added.
func (s *Service) Import(ctx context.Context, data []byte, password string, opts ...ImportOption) (int, error) {
	snap, err := s.Open(data, password)
	if err != nil {
		return 0, err
	}
	return s.Merge(ctx, snap, opts...)
}

// Merge adds the snapshot accounts missing locally in one atomic step.
// Accounts that already exist are left untouched. Settings, when restored,
// are written first so a failure leaves the accounts unchanged.
func (s *Service) Merge(ctx context.Context, snap *Snapshot, opts ...ImportOption) (int, error) {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	incoming := make([]account.Account, len(snap.Accounts))
	for i, a := range snap.Accounts {
		a.ID = uuid.Nil
		a.FolderID = nil
		incoming[i] = a
	}

	var previous *settings.Settings
	if cfg.restoreSettings && snap.Settings != nil && s.prefs != nil {
		current := s.prefs.Get()
		previous = &current
		if err := s.prefs.Restore(ctx, *snap.Settings); err != nil {
			return 0, errors.Join(ErrSettingsRestore, err)
		}
	}

	added, err := s.accounts.AddMissing(ctx, incoming)
	if err != nil {
		if previous != nil {
			if rerr := s.prefs.Restore(ctx, *previous); rerr != nil {
				s.logger.ErrorContext(ctx, "settings not rolled back", logger.Error(rerr))
				return 0, errors.Join(err, ErrSettingsRestore, rerr)
			}
		}
		return 0, err
	}
	s.logger.InfoContext(ctx, "backup merged",
		logger.Count(len(added)),
		slog.Int("skipped", len(incoming)-len(added)),
		slog.String("source_device", snap.DeviceName),
	)
	return len(added), nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}
