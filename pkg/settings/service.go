package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

const DefaultDocument = "settings.json"

var (
	ErrCorrupt = errors.New("settings: corrupt settings document")
	ErrPersist = errors.New("settings: failed to persist")
)

// Documents persists the settings document. Read must return an error
// matching localstore.ErrNotFound when nothing was saved yet.
type Documents interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
}

// Service loads, mutates and saves Settings. Safe for concurrent use.
type Service struct {
	mu        sync.RWMutex
	docs      Documents
	document  string
	current   Settings
	listeners []func(Settings)
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithDocumentName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.document = name
		}
	}
}

// NewService returns a service holding Default settings until Load.
func NewService(docs Documents, opts ...Option) *Service {
	s := &Service{
		docs:     docs,
		document: DefaultDocument,
		current:  Default(),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("settings"))
	return s
}

// Load reads saved settings. Missing documents keep the defaults; fields
// absent from an older document keep their default values.
func (s *Service) Load(ctx context.Context) error {
	data, err := s.docs.Read(ctx, s.document)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return nil
		}
		return err
	}

	loaded := Default()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return errors.Join(ErrCorrupt, err)
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Update applies fn to a copy, saves it and notifies listeners. If saving
// fails the current settings are unchanged.
func (s *Service) Update(ctx context.Context, fn func(*Settings)) error {
	s.mu.Lock()
	next := s.current.clone()
	fn(&next)
	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next.clone())
	}
	return nil
}

// Save writes the current settings.
func (s *Service) Save(ctx context.Context) error {
	return s.Update(ctx, func(*Settings) {})
}

// Reset restores defaults.
func (s *Service) Reset(ctx context.Context) error {
	return s.Update(ctx, func(cur *Settings) { *cur = Default() })
}

// Restore replaces preferences with imported ones while keeping the
// device-local sync state.
func (s *Service) Restore(ctx context.Context, imported Settings) error {
	return s.Update(ctx, func(cur *Settings) {
		local := cur.CloudSync
		*cur = imported.clone()
		cur.CloudSync = local
	})
}

// OnChange registers a listener called after every successful update.
func (s *Service) OnChange(fn func(Settings)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) save(ctx context.Context, v Settings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Join(ErrPersist, err)
	}
	if err := s.docs.Write(ctx, s.document, data); err != nil {
		s.logger.ErrorContext(ctx, "settings not saved", logger.Error(err))
		return errors.Join(ErrPersist, err)
	}
	return nil
}
