// Package logger builds *slog.Logger instances for otpkeeper components.
//
// New assembles a text or JSON handler from functional options and wraps it
// in a handler that copies request-scoped values out of the context on every
// record. The only value carried that way today is the operation id set by
// WithOperation, which lets a single sync or import run be followed through
// the logs of every component it touches.
//
// attr.go keeps attribute keys consistent across packages. Helpers return an
// empty slog.Attr for zero input, which slog drops, so call sites never need
// nil checks:
//
//	log.InfoContext(ctx, "account added",
//		logger.Component("account"),
//		logger.AccountID(a.ID),
//		logger.FolderID(a.FolderID),
//	)
//
// Secret keys, passwords and decrypted payloads must never be passed to a
// logger.
package logger
