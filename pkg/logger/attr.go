package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// AccountID records an account id. The nil UUID produces an empty Attr.
func AccountID(id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String("account_id", id.String())
}

// FolderID records a folder reference. Nil means uncategorized and is omitted.
func FolderID(id *uuid.UUID) slog.Attr {
	if id == nil || *id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String("folder_id", id.String())
}

func Provider(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("provider", name)
}

// Direction records a sync direction such as "upload".
func Direction(d string) slog.Attr {
	if d == "" {
		return slog.Attr{}
	}
	return slog.String("direction", d)
}

func Status(s string) slog.Attr {
	return slog.String("status", s)
}

func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// StoreKey records a secure store key. Keys are identifiers, never values.
func StoreKey(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("store_key", key)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
