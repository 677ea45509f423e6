package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/localstore"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
	"github.com/dmitrymomot/otpkeeper/pkg/otp"
	"github.com/dmitrymomot/otpkeeper/pkg/securestore"
)

// document is the persisted metadata. It never contains secrets.
type document struct {
	Version    int       `json:"version"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Accounts   []record  `json:"accounts"`
	Folders    []Folder  `json:"folders"`
}

type record struct {
	ID          uuid.UUID     `json:"id"`
	Issuer      string        `json:"issuer"`
	AccountName string        `json:"accountName"`
	Type        otp.Type      `json:"type"`
	Algorithm   otp.Algorithm `json:"algorithm"`
	Digits      int           `json:"digits"`
	Period      int           `json:"period"`
	Counter     int64         `json:"counter"`
	Favorite    bool          `json:"favorite"`
	SortOrder   int           `json:"sortOrder"`
	FolderID    *uuid.UUID    `json:"folderId"`
	Icon        string        `json:"icon,omitempty"`
	Color       string        `json:"color,omitempty"`
	Notes       *string       `json:"notes"`
	CreatedAt   time.Time     `json:"createdAt"`
	LastUsedAt  *time.Time    `json:"lastUsedAt"`
}

func toRecord(a Account) record {
	return record{
		ID:          a.ID,
		Issuer:      a.Issuer,
		AccountName: a.AccountName,
		Type:        a.Type,
		Algorithm:   a.Algorithm,
		Digits:      a.Digits,
		Period:      a.Period,
		Counter:     a.Counter,
		Favorite:    a.Favorite,
		SortOrder:   a.SortOrder,
		FolderID:    a.FolderID,
		Icon:        a.Icon,
		Color:       a.Color,
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
		LastUsedAt:  a.LastUsedAt,
	}
}

func (rec record) account(secretKey string) Account {
	return Account{
		ID:          rec.ID,
		Issuer:      rec.Issuer,
		AccountName: rec.AccountName,
		SecretKey:   secretKey,
		Type:        rec.Type,
		Algorithm:   rec.Algorithm,
		Digits:      rec.Digits,
		Period:      rec.Period,
		Counter:     rec.Counter,
		Favorite:    rec.Favorite,
		SortOrder:   rec.SortOrder,
		FolderID:    rec.FolderID,
		Icon:        rec.Icon,
		Color:       rec.Color,
		Notes:       rec.Notes,
		CreatedAt:   rec.CreatedAt,
		LastUsedAt:  rec.LastUsedAt,
	}
}

// load reads metadata and secrets once. Must be called with lock held.
func (r *Repository) load(ctx context.Context) error {
	if r.loaded {
		return nil
	}

	data, err := r.docs.Read(ctx, r.document)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		r.accounts, r.folders, r.modified, r.loaded = []Account{}, []Folder{}, time.Time{}, true
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Join(ErrCorruptMetadata, err)
	}
	if doc.Version > documentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptMetadata, doc.Version)
	}

	accounts := make([]Account, 0, len(doc.Accounts))
	for _, rec := range doc.Accounts {
		secretKey, err := r.secrets.Retrieve(ctx, StoreKey(rec.ID))
		switch {
		case errors.Is(err, securestore.ErrNotFound):
			// Listed without a secret; code generation reports the problem.
			r.logger.WarnContext(ctx, "secret missing for account", logger.AccountID(rec.ID))
		case err != nil:
			return err
		}
		accounts = append(accounts, rec.account(secretKey))
	}

	folders := doc.Folders
	if folders == nil {
		folders = []Folder{}
	}

	r.accounts, r.folders, r.modified, r.loaded = accounts, folders, doc.ModifiedAt, true
	r.logger.DebugContext(ctx, "accounts loaded", logger.Count(len(accounts)))
	return nil
}

// persist rewrites the whole metadata document.
func (r *Repository) persist(ctx context.Context, accounts []Account, folders []Folder) error {
	doc := document{
		Version:    documentVersion,
		ModifiedAt: r.now().UTC(),
		Accounts:   make([]record, len(accounts)),
		Folders:    folders,
	}
	for i, a := range accounts {
		doc.Accounts[i] = toRecord(a)
	}
	if doc.Folders == nil {
		doc.Folders = []Folder{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Join(ErrPersist, err)
	}
	if err := r.docs.Write(ctx, r.document, data); err != nil {
		return errors.Join(ErrPersist, err)
	}
	r.modified = doc.ModifiedAt
	return nil
}
