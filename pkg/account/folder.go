package account

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

// Folders returns all folders ordered by sort order.
func (r *Repository) Folders(ctx context.Context) ([]Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return nil, err
	}
	out := slices.Clone(r.folders)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *Repository) GetFolder(ctx context.Context, id uuid.UUID) (Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return Folder{}, err
	}
	i := r.folderIndex(id)
	if i < 0 {
		return Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	return r.folders[i], nil
}

// AddFolder creates a folder at the end of the folder order.
func (r *Repository) AddFolder(ctx context.Context, f Folder) (Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return Folder{}, err
	}
	if err := f.Validate(); err != nil {
		return Folder{}, err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if r.folderIndex(f.ID) >= 0 {
		return Folder{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidFolder, f.ID)
	}
	f.CreatedAt = r.now()
	f.SortOrder = 0
	for _, existing := range r.folders {
		if existing.SortOrder >= f.SortOrder {
			f.SortOrder = existing.SortOrder + 1
		}
	}

	next := append(slices.Clone(r.folders), f)
	if err := r.persist(ctx, r.accounts, next); err != nil {
		return Folder{}, err
	}
	r.folders = next
	return f, nil
}

func (r *Repository) UpdateFolder(ctx context.Context, f Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return err
	}
	i := r.folderIndex(f.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, f.ID)
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.folders[i].CreatedAt
	}

	next := slices.Clone(r.folders)
	next[i] = f
	if err := r.persist(ctx, r.accounts, next); err != nil {
		return err
	}
	r.folders = next
	return nil
}

// DeleteFolder removes a folder and moves its accounts to uncategorized.
func (r *Repository) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return err
	}
	i := r.folderIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}

	folders := slices.Delete(slices.Clone(r.folders), i, i+1)
	accounts := r.cloneAccounts()
	moved := 0
	for j := range accounts {
		if accounts[j].InFolder(&id) {
			accounts[j].FolderID = nil
			moved++
		}
	}

	if err := r.persist(ctx, accounts, folders); err != nil {
		return err
	}
	r.accounts, r.folders = accounts, folders

	r.logger.InfoContext(ctx, "folder deleted", logger.FolderID(&id), logger.Count(moved))
	return nil
}

func (r *Repository) folderIndex(id uuid.UUID) int {
	return slices.IndexFunc(r.folders, func(f Folder) bool { return f.ID == id })
}
