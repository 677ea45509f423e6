package otpkeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/cloud"
	"github.com/dmitrymomot/otpkeeper/pkg/cloudsync"
	"github.com/dmitrymomot/otpkeeper/pkg/display"
	"github.com/dmitrymomot/otpkeeper/pkg/envelope"
	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
	"github.com/dmitrymomot/otpkeeper/pkg/otp"
	"github.com/dmitrymomot/otpkeeper/pkg/qrcode"
	"github.com/dmitrymomot/otpkeeper/pkg/secret"
	"github.com/dmitrymomot/otpkeeper/pkg/securestore"
	"github.com/dmitrymomot/otpkeeper/pkg/settings"
)

const (
	protectorFile = ".protector"

	// PBKDF2 cost for documents sealed with the device protector.
	localIterations = 10_000
)

// Deps are the collaborators of a Keeper. Accounts and Settings are
// required; Backups and Sync are derived from them when nil.
type Deps struct {
	Accounts  *account.Repository
	Settings  *settings.Service
	Backups   *backup.Service
	Sync      *cloudsync.Manager
	Clipboard Clipboard
	Screen    ScreenCapturer
	Decoder   qrcode.Decoder
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Keeper is the authenticator core. Safe for concurrent use.
type Keeper struct {
	accounts  *account.Repository
	settings  *settings.Service
	backups   *backup.Service
	sync      *cloudsync.Manager
	clipboard Clipboard
	screen    ScreenCapturer
	decoder   qrcode.Decoder
	now       func() time.Time
	logger    *slog.Logger
}

func New(d Deps) (*Keeper, error) {
	if d.Accounts == nil || d.Settings == nil {
		return nil, fmt.Errorf("%w: accounts and settings are required", ErrInvalidConfig)
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Backups == nil {
		d.Backups = backup.NewService(d.Accounts,
			backup.WithPreferences(d.Settings),
			backup.WithClock(d.Clock),
			backup.WithLogger(d.Logger),
		)
	}
	if d.Sync == nil {
		d.Sync = cloudsync.NewManager(d.Backups, d.Settings,
			cloudsync.WithChanges(d.Accounts),
			cloudsync.WithClock(d.Clock),
			cloudsync.WithLogger(d.Logger),
		)
	}
	return &Keeper{
		accounts:  d.Accounts,
		settings:  d.Settings,
		backups:   d.Backups,
		sync:      d.Sync,
		clipboard: d.Clipboard,
		screen:    d.Screen,
		decoder:   d.Decoder,
		now:       d.Clock,
		logger:    d.Logger.With(logger.Component("keeper")),
	}, nil
}

type openOptions struct {
	logger    *slog.Logger
	secrets   securestore.Store
	providers []cloud.Provider
	cloudOpts []cloud.FactoryOption
	clipboard Clipboard
	screen    ScreenCapturer
	decoder   qrcode.Decoder
	clock     func() time.Time
}

type Option func(*openOptions)

func WithLogger(l *slog.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithSecretStore overrides the backend selected by Config.SecretBackend.
func WithSecretStore(s securestore.Store) Option {
	return func(o *openOptions) { o.secrets = s }
}

// WithProvider registers an extra sync provider, for example one whose
// authorization flow is driven by the caller.
func WithProvider(p cloud.Provider) Option {
	return func(o *openOptions) { o.providers = append(o.providers, p) }
}

// WithCloudOptions is passed to cloud.NewFromDriver.
func WithCloudOptions(opts ...cloud.FactoryOption) Option {
	return func(o *openOptions) { o.cloudOpts = append(o.cloudOpts, opts...) }
}

func WithClipboard(c Clipboard) Option {
	return func(o *openOptions) { o.clipboard = c }
}

func WithScreenCapturer(s ScreenCapturer) Option {
	return func(o *openOptions) { o.screen = s }
}

func WithQRDecoder(d qrcode.Decoder) Option {
	return func(o *openOptions) { o.decoder = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *openOptions) { o.clock = now }
}

// Open builds a Keeper over the data directory in cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Keeper, error) {
	o := &openOptions{logger: logger.Nop(), clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger

	path, err := cfg.dataDir()
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	dir, err := localstore.NewDir(path)
	if err != nil {
		return nil, err
	}

	secrets := o.secrets
	if secrets == nil {
		if secrets, err = openSecrets(ctx, cfg, dir, log); err != nil {
			return nil, err
		}
	}

	repo := account.NewRepository(dir, secrets, account.WithLogger(log), account.WithClock(o.clock))
	prefs := settings.NewService(dir, settings.WithLogger(log))
	if err := prefs.Load(ctx); err != nil {
		return nil, err
	}

	backups := backup.NewService(repo,
		backup.WithPreferences(prefs),
		backup.WithDeviceName(cfg.DeviceName),
		backup.WithClock(o.clock),
		backup.WithLogger(log),
	)
	manager := cloudsync.NewManager(backups, prefs,
		cloudsync.WithChanges(repo),
		cloudsync.WithClock(o.clock),
		cloudsync.WithLogger(log),
	)
	if cfg.syncConfigured() {
		p, err := cloud.NewFromDriver(ctx, cfg.Sync, o.cloudOpts...)
		if err != nil {
			return nil, err
		}
		manager.Register(p)
	}
	for _, p := range o.providers {
		manager.Register(p)
	}

	return New(Deps{
		Accounts:  repo,
		Settings:  prefs,
		Backups:   backups,
		Sync:      manager,
		Clipboard: o.clipboard,
		Screen:    o.screen,
		Decoder:   o.decoder,
		Clock:     o.clock,
		Logger:    log,
	})
}

func openSecrets(ctx context.Context, cfg Config, dir *localstore.Dir, log *slog.Logger) (securestore.Store, error) {
	sealedFile := func() (securestore.Store, error) {
		protector, err := localstore.LoadOrCreateProtector(ctx, dir, protectorFile)
		if err != nil {
			return nil, err
		}
		cipher := envelope.New(envelope.WithIterations(localIterations))
		return securestore.NewFile(localstore.NewSealed(dir, cipher, protector)), nil
	}

	switch cfg.SecretBackend {
	case SecretsMemory:
		return securestore.NewMemory(), nil
	case SecretsKeyring:
		return securestore.NewKeyring(cfg.KeyringService), nil
	case SecretsFile:
		return sealedFile()
	case SecretsAuto, "":
		file, err := sealedFile()
		if err != nil {
			return nil, err
		}
		return securestore.NewFallback(securestore.NewKeyring(cfg.KeyringService), file,
			securestore.WithLogger(log)), nil
	default:
		return nil, fmt.Errorf("%w: unknown secret backend %q", ErrInvalidConfig, cfg.SecretBackend)
	}
}

func (k *Keeper) Accounts() *account.Repository { return k.accounts }

func (k *Keeper) Settings() *settings.Service { return k.settings }

func (k *Keeper) SyncManager() *cloudsync.Manager { return k.sync }

// GenerateCode returns the code of a at the given instant.
func (k *Keeper) GenerateCode(a account.Account, at time.Time) (string, error) {
	return otp.GenerateCode(a.Params().WithDefaults(), at)
}

// Code returns the current code of a stored account.
func (k *Keeper) Code(ctx context.Context, id uuid.UUID) (string, error) {
	a, err := k.accounts.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return k.GenerateCode(a, k.now())
}

func (k *Keeper) RemainingSeconds(period int, at time.Time) int {
	return otp.RemainingSeconds(period, at)
}

func (k *Keeper) Progress(period int, at time.Time) float64 {
	return otp.Progress(period, at)
}

// IncrementCounter advances a HOTP account by exactly one.
func (k *Keeper) IncrementCounter(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return k.accounts.IncrementCounter(ctx, id)
}

// ParseURI converts an otpauth URI into an unsaved account.
func (k *Keeper) ParseURI(raw string) (account.Account, error) {
	key, err := otp.ParseURI(raw)
	if err != nil {
		return account.Account{}, err
	}
	return account.FromKey(*key), nil
}

func (k *Keeper) BuildURI(a account.Account) string {
	return a.URI()
}

func (k *Keeper) ValidateSecret(s string) bool {
	return secret.Validate(s)
}

// GenerateSecret returns size random bytes as Base32.
func (k *Keeper) GenerateSecret(size int) (string, error) {
	return secret.Generate(size)
}

// AddURI parses raw and stores the account.
func (k *Keeper) AddURI(ctx context.Context, raw string) (account.Account, error) {
	a, err := k.ParseURI(raw)
	if err != nil {
		return account.Account{}, err
	}
	return k.accounts.Add(ctx, a)
}

// Export seals every account, and the settings when requested.
func (k *Keeper) Export(ctx context.Context, password string, includeSettings bool) ([]byte, error) {
	return k.backups.Export(ctx, password, includeSettings)
}

// Import merges a backup file and returns the number of accounts added.
func (k *Keeper) Import(ctx context.Context, data []byte, password string, restoreSettings bool) (int, error) {
	var opts []backup.ImportOption
	if restoreSettings {
		opts = append(opts, backup.RestoreSettings())
	}
	return k.backups.Import(ctx, data, password, opts...)
}

func (k *Keeper) Sync(ctx context.Context, password string) (cloudsync.Result, error) {
	return k.sync.Sync(ctx, password)
}

func (k *Keeper) ForceUpload(ctx context.Context, password string) (cloudsync.Result, error) {
	return k.sync.ForceUpload(ctx, password)
}

func (k *Keeper) ForceDownload(ctx context.Context, password string) (cloudsync.Result, error) {
	return k.sync.ForceDownload(ctx, password)
}

// Cards renders every account for the current instant.
func (k *Keeper) Cards(ctx context.Context) ([]display.Card, error) {
	accounts, err := k.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	return display.BuildAll(accounts, k.now())
}

// Card renders the account at a 0-based display position, clamped to the
// available range.
func (k *Keeper) Card(ctx context.Context, index int) (display.Card, error) {
	accounts, err := k.accounts.List(ctx)
	if err != nil {
		return display.Card{}, err
	}
	return display.Build(accounts, index, k.now())
}

// CopyCode puts the current code of id on the clipboard and records the use.
func (k *Keeper) CopyCode(ctx context.Context, id uuid.UUID) (string, error) {
	if k.clipboard == nil {
		return "", ErrNoClipboard
	}
	code, err := k.Code(ctx, id)
	if err != nil {
		return "", err
	}

	clearAfter := time.Duration(k.settings.Get().ClipboardClearSeconds) * time.Second
	if err := k.clipboard.Copy(ctx, code, clearAfter); err != nil {
		return "", err
	}
	if _, err := k.accounts.MarkUsed(ctx, id); err != nil {
		k.logger.WarnContext(ctx, "last use not recorded", logger.AccountID(id), logger.Error(err))
	}
	return code, nil
}

// ScanScreen looks for an otpauth QR code on every display and returns the
// first match as an unsaved account.
func (k *Keeper) ScanScreen(ctx context.Context) (account.Account, error) {
	if k.screen == nil {
		return account.Account{}, ErrNoScreenCapturer
	}
	images, err := k.screen.CaptureScreens(ctx)
	if err != nil {
		return account.Account{}, err
	}

	var errs []error
	for _, img := range images {
		key, err := qrcode.ReadURI(ctx, k.decoder, img)
		if err == nil {
			return account.FromKey(*key), nil
		}
		if errors.Is(err, qrcode.ErrNoDecoder) {
			return account.Account{}, err
		}
		errs = append(errs, err)
	}
	return account.Account{}, errors.Join(append([]error{ErrNoQRCode}, errs...)...)
}

// ImportQRImage decodes image and stores the account it describes.
func (k *Keeper) ImportQRImage(ctx context.Context, image []byte) (account.Account, error) {
	key, err := qrcode.ReadURI(ctx, k.decoder, image)
	if err != nil {
		return account.Account{}, err
	}
	return k.accounts.Add(ctx, account.FromKey(*key))
}

// AccountQR renders the otpauth URI of id as a PNG.
func (k *Keeper) AccountQR(ctx context.Context, id uuid.UUID, size int) ([]byte, error) {
	a, err := k.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(a.URI(), size)
}
