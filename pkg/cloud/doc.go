// Package cloud defines the storage capability used for backup sync and
// ships a few ready-made implementations.
//
// A Provider stores opaque files by name. The sync manager only ever uses a
// single fixed file name, so providers do not need listing or folders.
//
// Implementations:
//
//   - LocalProvider writes into a directory, typically one kept in sync by a
//     desktop client of some other service.
//   - S3Provider talks to Amazon S3 or any S3-compatible service.
//   - GCSProvider talks to Google Cloud Storage. Interactive sign-in is not
//     performed here; callers hand in an Authorizer that yields an
//     oauth2.TokenSource once the user has consented.
//   - RedisProvider keeps files in Redis hashes, handy for self-hosted setups.
//
// Vendor failures are classified so callers can branch on them:
//
//	info, err := p.FileInfo(ctx, "backup.otp")
//	switch {
//	case errors.Is(err, cloud.ErrNotFound):
//		// first upload
//	case errors.Is(err, cloud.ErrAuthentication):
//		// ask the user to sign in again
//	case errors.Is(err, cloud.ErrNetwork):
//		// try later
//	}
package cloud
