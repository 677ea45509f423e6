package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/logger"
	"github.com/dmitrymomot/otpkeeper/pkg/securestore"
)

const (
	DefaultDocument = "metadata.json"
	documentVersion = 1
	secretKeyPrefix = "secret_"
)

// StoreKey is the secure store key holding the secret of account id.
func StoreKey(id uuid.UUID) string {
	return secretKeyPrefix + id.String()
}

// Documents persists the metadata document. Read must return an error
// matching localstore.ErrNotFound when the document does not exist.
type Documents interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
}

// Repository manages accounts and folders. Safe for concurrent use.
type Repository struct {
	mu       sync.Mutex
	docs     Documents
	secrets  securestore.Store
	document string
	now      func() time.Time
	logger   *slog.Logger

	loaded   bool
	modified time.Time
	accounts []Account
	folders  []Folder
}

// Option configures a Repository.
type Option func(*Repository)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the time source for CreatedAt and LastUsedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithDocumentName overrides the metadata document name.
func WithDocumentName(name string) Option {
	return func(r *Repository) {
		if name != "" {
			r.document = name
		}
	}
}

func NewRepository(docs Documents, secrets securestore.Store, opts ...Option) *Repository {
	r := &Repository{
		docs:     docs,
		secrets:  secrets,
		document: DefaultDocument,
		now:      time.Now,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("account"))
	return r
}

// List returns all accounts ordered by sort order.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	return r.filter(ctx, func(Account) bool { return true })
}

// Get returns one account.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return Account{}, err
	}
	i := r.indexOf(id)
	if i < 0 {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.accounts[i].clone(), nil
}

// Add stores a new account at the end of the sort order. A nil ID is
// replaced with a fresh one. CreatedAt is always set to now.
func (r *Repository) Add(ctx context.Context, a Account) (Account, error) {
	added, err := r.AddMany(ctx, []Account{a})
	if err != nil {
		return Account{}, err
	}
	return added[0], nil
}

// AddMany adds all accounts or none of them.
func (r *Repository) AddMany(ctx context.Context, accounts []Account) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r.insert(ctx, accounts)
}

// AddMissing adds the accounts whose DedupKey is not present yet, in one
// atomic step, and returns the ones actually added.
func (r *Repository) AddMissing(ctx context.Context, accounts []Account) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(r.accounts)+len(accounts))
	for _, a := range r.accounts {
		seen[a.DedupKey()] = struct{}{}
	}

	missing := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		a = a.WithDefaults()
		key := a.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		missing = append(missing, a)
	}
	if len(missing) == 0 {
		return []Account{}, nil
	}
	return r.insert(ctx, missing)
}

// Must be called with lock held and state loaded.
func (r *Repository) insert(ctx context.Context, accounts []Account) ([]Account, error) {
	now := r.now()
	order := r.nextSortOrder()
	added := make([]Account, 0, len(accounts))
	ids := make(map[uuid.UUID]struct{}, len(accounts))

	for _, a := range accounts {
		a = a.WithDefaults().clone()
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if _, dup := ids[a.ID]; dup || r.indexOf(a.ID) >= 0 {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidAccount, a.ID)
		}
		if err := r.checkFolder(a.FolderID); err != nil {
			return nil, err
		}
		ids[a.ID] = struct{}{}
		a.CreatedAt = now
		a.SortOrder = order
		order++
		added = append(added, a)
	}

	stored := make([]uuid.UUID, 0, len(added))
	rollback := func() {
		for _, id := range stored {
			if err := r.secrets.Remove(ctx, StoreKey(id)); err != nil {
				r.logger.WarnContext(ctx, "secret rollback failed", logger.AccountID(id), logger.Error(err))
			}
		}
	}
	for _, a := range added {
		if err := r.secrets.Store(ctx, StoreKey(a.ID), a.SecretKey); err != nil {
			rollback()
			return nil, errors.Join(ErrPersist, err)
		}
		stored = append(stored, a.ID)
	}

	next := append(r.cloneAccounts(), added...)
	if err := r.persist(ctx, next, r.folders); err != nil {
		rollback()
		return nil, err
	}
	r.accounts = next

	r.logger.InfoContext(ctx, "accounts added", logger.Count(len(added)))

	out := make([]Account, len(added))
	for i, a := range added {
		out[i] = a.clone()
	}
	return out, nil
}

// Update replaces an existing account. A changed secret is written to the
// secure store first and restored if the metadata write fails.
func (r *Repository) Update(ctx context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return err
	}
	i := r.indexOf(a.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}

	a = a.WithDefaults().clone()
	if err := a.Validate(); err != nil {
		return err
	}
	if err := r.checkFolder(a.FolderID); err != nil {
		return err
	}
	prev := r.accounts[i]
	if a.CreatedAt.IsZero() {
		a.CreatedAt = prev.CreatedAt
	}

	secretChanged := a.SecretKey != prev.SecretKey
	if secretChanged {
		if err := r.secrets.Store(ctx, StoreKey(a.ID), a.SecretKey); err != nil {
			return errors.Join(ErrPersist, err)
		}
	}

	next := r.cloneAccounts()
	next[i] = a
	if err := r.persist(ctx, next, r.folders); err != nil {
		if secretChanged {
			if rerr := r.secrets.Store(ctx, StoreKey(a.ID), prev.SecretKey); rerr != nil {
				r.logger.ErrorContext(ctx, "secret rollback failed", logger.AccountID(a.ID), logger.Error(rerr))
			}
		}
		return err
	}
	r.accounts = next

	r.logger.DebugContext(ctx, "account updated", logger.AccountID(a.ID))
	return nil
}

// Delete removes an account and its secret.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return err
	}
	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := slices.Delete(r.cloneAccounts(), i, i+1)
	if err := r.persist(ctx, next, r.folders); err != nil {
		return err
	}
	r.accounts = next

	// The account is gone from metadata; an orphaned secret is harmless.
	if err := r.secrets.Remove(ctx, StoreKey(id)); err != nil {
		r.logger.WarnContext(ctx, "secret not removed", logger.AccountID(id), logger.Error(err))
	}
	r.logger.InfoContext(ctx, "account deleted", logger.AccountID(id))
	return nil
}

// UpdateSortOrder applies new sort positions. Unknown ids are ignored.
func (r *Repository) UpdateSortOrder(ctx context.Context, positions []Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return err
	}

	next := r.cloneAccounts()
	for _, p := range positions {
		for i := range next {
			if next[i].ID == p.ID {
				next[i].SortOrder = p.SortOrder
				break
			}
		}
	}
	if err := r.persist(ctx, next, r.folders); err != nil {
		return err
	}
	r.accounts = next
	return nil
}

// IncrementCounter advances the counter of a HOTP account and persists it.
func (r *Repository) IncrementCounter(ctx context.Context, id uuid.UUID) (Account, error) {
	return r.modify(ctx, id, func(a *Account) error { return a.IncrementCounter() })
}

// MarkUsed records that a code of the account was used now.
func (r *Repository) MarkUsed(ctx context.Context, id uuid.UUID) (Account, error) {
	return r.modify(ctx, id, func(a *Account) error {
		now := r.now()
		a.LastUsedAt = &now
		return nil
	})
}

// SetFavorite toggles the favorite flag.
func (r *Repository) SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) (Account, error) {
	return r.modify(ctx, id, func(a *Account) error {
		a.Favorite = favorite
		return nil
	})
}

// MoveToFolder assigns an account to a folder; nil means uncategorized.
func (r *Repository) MoveToFolder(ctx context.Context, id uuid.UUID, folderID *uuid.UUID) (Account, error) {
	return r.modify(ctx, id, func(a *Account) error {
		if err := r.checkFolder(folderID); err != nil {
			return err
		}
		if folderID == nil {
			a.FolderID = nil
		} else {
			f := *folderID
			a.FolderID = &f
		}
		return nil
	})
}

// modify applies a metadata-only change.
func (r *Repository) modify(ctx context.Context, id uuid.UUID, fn func(*Account) error) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return Account{}, err
	}
	i := r.indexOf(id)
	if i < 0 {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := r.cloneAccounts()
	if err := fn(&next[i]); err != nil {
		return Account{}, err
	}
	if err := r.persist(ctx, next, r.folders); err != nil {
		return Account{}, err
	}
	r.accounts = next
	return next[i].clone(), nil
}

// Favorites returns favorite accounts ordered by sort order.
func (r *Repository) Favorites(ctx context.Context) ([]Account, error) {
	return r.filter(ctx, func(a Account) bool { return a.Favorite })
}

// ByFolder returns the accounts of a folder; nil selects uncategorized ones.
func (r *Repository) ByFolder(ctx context.Context, folderID *uuid.UUID) ([]Account, error) {
	return r.filter(ctx, func(a Account) bool { return a.InFolder(folderID) })
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return 0, err
	}
	return len(r.accounts), nil
}

// CountInFolder counts accounts in a folder; nil counts uncategorized ones.
func (r *Repository) CountInFolder(ctx context.Context, folderID *uuid.UUID) (int, error) {
	accounts, err := r.ByFolder(ctx, folderID)
	if err != nil {
		return 0, err
	}
	return len(accounts), nil
}

// ModifiedAt is the time of the last successful write, zero when nothing
// was ever saved.
func (r *Repository) ModifiedAt(ctx context.Context) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return time.Time{}, err
	}
	return r.modified, nil
}

// Refresh drops the in-memory state; the next call reloads from storage.
func (r *Repository) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loaded = false
	r.accounts = nil
	r.folders = nil
}

func (r *Repository) filter(ctx context.Context, keep func(Account) bool) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if keep(a) {
			out = append(out, a.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repository) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(r.accounts, func(a Account) bool { return a.ID == id })
}

func (r *Repository) nextSortOrder() int {
	next := 0
	for _, a := range r.accounts {
		if a.SortOrder >= next {
			next = a.SortOrder + 1
		}
	}
	return next
}

func (r *Repository) checkFolder(id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if r.folderIndex(*id) < 0 {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	return nil
}

func (r *Repository) cloneAccounts() []Account {
	out := make([]Account, len(r.accounts))
	for i, a := range r.accounts {
		out[i] = a.clone()
	}
	return out
}
