// Package backup exports and imports password-protected account snapshots.
//
// A Snapshot is the JSON document
//
//	{"version":"1.0","createdAt":...,"deviceName":...,"accounts":[...],"settings":{...}|null,"checksum":"<hex>"}
//
// sealed in an envelope (see package envelope). The checksum is the SHA-256
// of every account's "issuer:accountName:secretKey" joined with "|". It is
// verified after decryption and catches serialization bugs that the
// envelope's HMAC cannot see.
//
// Import is all-or-nothing and idempotent. The envelope, the snapshot and its
// checksum are all validated before the repository is touched, and accounts
// whose (issuer, accountName, secretKey) triple already exists are skipped, so
// importing the same file twice adds nothing the second time. Imported
// accounts get fresh ids and lose their folder reference, since folders are
// not part of a snapshot.
package backup
