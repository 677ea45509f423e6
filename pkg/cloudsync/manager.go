package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/cloud"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
	"github.com/dmitrymomot/otpkeeper/pkg/settings"
	"github.com/dmitrymomot/otpkeeper/pkg/statemachine"
)

// BackupFileName is the single remote file every device reads and writes.
const BackupFileName = "backup.otp"

// Backups is the part of backup.Service a sync run needs.
type Backups interface {
	Snapshot(ctx context.Context, includeSettings bool) (*backup.Snapshot, error)
	Seal(snap *backup.Snapshot, password string) ([]byte, error)
	Open(data []byte, password string) (*backup.Snapshot, error)
	Merge(ctx context.Context, snap *backup.Snapshot, opts ...backup.ImportOption) (int, error)
}

// Preferences is the part of settings.Service a sync run needs.
type Preferences interface {
	Get() settings.Settings
	Update(ctx context.Context, fn func(*settings.Settings)) error
}

// Changes reports when local accounts were last modified. Without it a
// run only uploads when the remote file is missing or older than the last
// sync.
type Changes interface {
	ModifiedAt(ctx context.Context) (time.Time, error)
}

type trigger string

const (
	triggerStart   trigger = "start"
	triggerSucceed trigger = "succeed"
	triggerFail    trigger = "fail"
	triggerSettle  trigger = "settle"
)

type Option func(*Manager)

// WithProvider registers a provider under its Name.
func WithProvider(p cloud.Provider) Option {
	return func(m *Manager) { m.register(p) }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithChanges(c Changes) Option {
	return func(m *Manager) { m.changes = c }
}

func WithFileName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.fileName = name
		}
	}
}

// Manager runs sync operations. Safe for concurrent use.
type Manager struct {
	backups  Backups
	prefs    Preferences
	changes  Changes
	fileName string
	now      func() time.Time
	logger   *slog.Logger

	lock  *semaphore.Weighted
	state *statemachine.Machine[Status, trigger]

	mu          sync.RWMutex
	providers   map[string]cloud.Provider
	subscribers map[int]func(Event)
	nextSub     int
	last        *Report
}

func NewManager(backups Backups, prefs Preferences, opts ...Option) *Manager {
	m := &Manager{
		backups:     backups,
		prefs:       prefs,
		fileName:    BackupFileName,
		now:         time.Now,
		logger:      logger.Nop(),
		lock:        semaphore.NewWeighted(1),
		providers:   make(map[string]cloud.Provider),
		subscribers: make(map[int]func(Event)),
	}
	m.state = statemachine.New[Status, trigger](StatusIdle,
		statemachine.Transition[Status, trigger]{From: StatusIdle, To: StatusSyncing, Event: triggerStart},
		statemachine.Transition[Status, trigger]{From: StatusSyncing, To: StatusCompleted, Event: triggerSucceed},
		statemachine.Transition[Status, trigger]{From: StatusSyncing, To: StatusError, Event: triggerFail},
		statemachine.Transition[Status, trigger]{From: StatusCompleted, To: StatusIdle, Event: triggerSettle},
		statemachine.Transition[Status, trigger]{From: StatusError, To: StatusIdle, Event: triggerSettle},
	)
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("cloudsync"))
	return m
}

// Register adds or replaces a provider.
func (m *Manager) Register(p cloud.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.register(p)
}

func (m *Manager) register(p cloud.Provider) {
	if p != nil {
		m.providers[p.Name()] = p
	}
}

// Active returns the provider selected in settings.
func (m *Manager) Active() (cloud.Provider, error) {
	name := m.prefs.Get().CloudSync.Provider
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		return nil, ErrProviderNotFound
	}
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// Status is the current state of the run machine.
func (m *Manager) Status() Status {
	return m.state.Current()
}

// LastReport describes the most recent finished run, if any.
func (m *Manager) LastReport() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

// Subscribe registers fn for progress events and returns a function that
// removes it. Events are delivered on the syncing goroutine.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Sync decides the direction from the remote modification time and the last
// recorded sync. It requires sync to be enabled in settings.
func (m *Manager) Sync(ctx context.Context, password string) (Result, error) {
	if !m.prefs.Get().CloudSync.Enabled {
		return ResultProviderNotFound, ErrSyncDisabled
	}
	return m.run(ctx, password, "")
}

// ForceUpload replaces the remote backup with the local accounts.
func (m *Manager) ForceUpload(ctx context.Context, password string) (Result, error) {
	return m.run(ctx, password, DirectionUpload)
}

// ForceDownload merges the remote backup into the local accounts.
func (m *Manager) ForceDownload(ctx context.Context, password string) (Result, error) {
	return m.run(ctx, password, DirectionDownload)
}

func (m *Manager) run(ctx context.Context, password string, forced Direction) (Result, error) {
	provider, err := m.Active()
	if err != nil {
		return ResultProviderNotFound, err
	}

	if err := m.lock.Acquire(ctx, 1); err != nil {
		return ResultError, err
	}
	defer m.lock.Release(1)

	ctx = logger.WithOperation(ctx, uuid.NewString())
	log := m.logger.With(logger.Provider(provider.Name()))
	started := m.now()

	if err := m.state.Fire(ctx, triggerStart); err != nil {
		return ResultError, err
	}
	m.emit(StatusSyncing, "Connecting...", nil)

	report := m.execute(ctx, provider, password, forced)
	report.Provider = provider.Name()
	report.Finished = m.now()

	if report.Err != nil {
		_ = m.state.Fire(ctx, triggerFail)
		m.emit(StatusError, report.Err.Error(), report.Err)
		log.ErrorContext(ctx, "sync failed",
			logger.Direction(string(report.Direction)),
			logger.Status(report.Result.String()),
			logger.Error(report.Err),
		)
	} else {
		_ = m.state.Fire(ctx, triggerSucceed)
		msg := "Sync completed"
		if report.Result == ResultUpToDate {
			msg = "Already up to date"
		}
		m.emit(StatusCompleted, msg, nil)
		log.InfoContext(ctx, "sync completed",
			logger.Direction(string(report.Direction)),
			logger.Status(report.Result.String()),
			logger.Count(report.Added),
			logger.Duration(report.Finished.Sub(started)),
		)
	}
	_ = m.state.Fire(ctx, triggerSettle)

	m.mu.Lock()
	m.last = &report
	m.mu.Unlock()

	return report.Result, report.Err
}

func (m *Manager) execute(ctx context.Context, provider cloud.Provider, password string, forced Direction) Report {
	fail := func(dir Direction, err error) Report {
		return Report{Result: resultOf(err), Direction: dir, Err: err}
	}

	if password == "" {
		return fail(DirectionNone, errors.New("cloudsync: a backup password is required"))
	}

	if !provider.IsAuthenticated() {
		m.emit(StatusSyncing, "Authenticating...", nil)
		if err := provider.Authenticate(ctx); err != nil {
			if !errors.Is(err, cloud.ErrNetwork) && !errors.Is(err, cloud.ErrAuthentication) {
				err = errors.Join(cloud.ErrAuthentication, err)
			}
			return fail(DirectionNone, err)
		}
	}

	var remote *cloud.FileInfo
	if forced != DirectionUpload {
		m.emit(StatusSyncing, "Checking for changes...", nil)
		info, err := provider.FileInfo(ctx, m.fileName)
		switch {
		case errors.Is(err, cloud.ErrNotFound):
		case err != nil:
			return fail(DirectionNone, err)
		default:
			remote = info
		}
	}

	direction := forced
	if direction == "" {
		var localModified *time.Time
		if m.changes != nil {
			at, err := m.changes.ModifiedAt(ctx)
			if err != nil {
				return fail(DirectionNone, err)
			}
			localModified = &at
		}
		direction = decide(remote, m.prefs.Get().CloudSync.LastSyncTime, localModified)
	}

	switch direction {
	case DirectionUpload:
		m.emit(StatusSyncing, "Uploading...", nil)
		uploaded, err := m.upload(ctx, provider, password)
		if err != nil {
			return fail(direction, err)
		}
		if err := m.recordSync(ctx, uploaded.ModifiedAt); err != nil {
			return fail(direction, err)
		}
		return Report{Result: ResultSuccess, Direction: direction}

	case DirectionDownload:
		if remote == nil {
			return fail(direction, ErrNoRemoteBackup)
		}
		added, err := m.pull(ctx, provider, remote, password)
		if err != nil {
			return fail(direction, err)
		}
		return Report{Result: ResultSuccess, Direction: direction, Added: added}

	default:
		return Report{Result: ResultUpToDate, Direction: DirectionNone}
	}
}

// decide picks the transfer for an automatic run. localModified is nil
// when local changes are not tracked.
func decide(remote *cloud.FileInfo, lastSync, localModified *time.Time) Direction {
	switch {
	case remote == nil:
		return DirectionUpload
	case lastSync == nil || remote.ModifiedAt.After(*lastSync):
		return DirectionDownload
	case localModified != nil && localModified.After(*lastSync):
		return DirectionUpload
	case localModified == nil && lastSync.After(remote.ModifiedAt):
		return DirectionUpload
	default:
		return DirectionNone
	}
}

func (m *Manager) upload(ctx context.Context, provider cloud.Provider, password string) (*cloud.FileInfo, error) {
	snap, err := m.backups.Snapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	data, err := m.backups.Seal(snap, password)
	if err != nil {
		return nil, err
	}
	return provider.Upload(ctx, m.fileName, data)
}

// pull downloads and validates the remote snapshot and, when this device
// holds accounts the remote lacks, uploads the combined set. Local state is
// written only after every remote step succeeded: the sync time first, then
// the account merge as a single atomic repository write.
func (m *Manager) pull(ctx context.Context, provider cloud.Provider, remote *cloud.FileInfo, password string) (int, error) {
	m.emit(StatusSyncing, "Downloading...", nil)
	data, err := provider.Download(ctx, remote.ID)
	if err != nil {
		return 0, err
	}
	snap, err := m.backups.Open(data, password)
	if err != nil {
		return 0, err
	}

	local, err := m.backups.Snapshot(ctx, false)
	if err != nil {
		return 0, err
	}

	synced := remote.ModifiedAt
	if combined, extra := backup.Combine(local, snap); extra > 0 {
		m.emit(StatusSyncing, "Uploading...", nil)
		sealed, err := m.backups.Seal(combined, password)
		if err != nil {
			return 0, err
		}
		pushed, err := provider.Upload(ctx, m.fileName, sealed)
		if err != nil {
			return 0, err
		}
		synced = pushed.ModifiedAt
	}

	previous := m.prefs.Get().CloudSync.LastSyncTime
	if err := m.recordSync(ctx, synced); err != nil {
		return 0, err
	}
	added, err := m.backups.Merge(ctx, snap)
	if err != nil {
		if rerr := m.prefs.Update(ctx, func(s *settings.Settings) {
			s.CloudSync.LastSyncTime = previous
		}); rerr != nil {
			m.logger.ErrorContext(ctx, "last sync time not rolled back", logger.Error(rerr))
			return 0, errors.Join(err, rerr)
		}
		return 0, err
	}
	return added, nil
}

// recordSync stores the later of now and the remote modification time so
// the file just written or read does not look newer on the next run.
func (m *Manager) recordSync(ctx context.Context, remoteModified time.Time) error {
	at := m.now().UTC()
	if remoteModified.After(at) {
		at = remoteModified.UTC()
	}
	return m.prefs.Update(ctx, func(s *settings.Settings) {
		s.CloudSync.LastSyncTime = &at
	})
}

func (m *Manager) emit(status Status, message string, err error) {
	ev := Event{Status: status, Message: message, Time: m.now(), Err: err}

	m.mu.RLock()
	subs := make([]func(Event), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
