// Package localstore keeps small application documents on the local disk.
//
// Dir confines every path to a base directory and replaces files atomically
// (write to a temporary file, fsync, rename), so a crash never leaves a
// half-written document behind. Files are created 0600 and directories 0700.
//
// Sealed decorates a Dir and stores each document as a password envelope
// keyed by a per-device protector. LoadOrCreateProtector produces that
// protector on first use and keeps it next to the data.
//
//	dir, err := localstore.NewDir(dataDir)
//	protector, err := localstore.LoadOrCreateProtector(ctx, dir, "device.key")
//	docs := localstore.NewSealed(dir, envelope.New(), protector)
//	err = docs.Write(ctx, "metadata.json", payload)
package localstore
