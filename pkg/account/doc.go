// Package account owns the user's OTP accounts and folders.
//
// Repository is the single source of truth for account metadata. Metadata
// (everything except the shared secret) lives in one JSON document that is
// rewritten in full after every mutation. Secrets live in a securestore.Store
// under "secret_<account id>". Mutations are applied to a copy of the
// in-memory state and committed only after persistence succeeds; a failed
// metadata write rolls back any secret written for the same operation.
//
// The repository loads lazily on first access. Refresh drops the in-memory
// state so the next call reloads from storage. All methods serialize on one
// mutex, so callers never observe a half-applied mutation.
//
// Folders are a weak grouping: an account references a folder by id and a
// nil reference means uncategorized. Deleting a folder moves its accounts to
// uncategorized rather than deleting them.
package account
