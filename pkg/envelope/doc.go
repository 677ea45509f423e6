// Package envelope implements the password-based authenticated encryption
// envelope used for backup files and locally sealed documents.
//
// A key is derived from the password with PBKDF2-HMAC-SHA256 over a fresh
// 32-byte salt. The plaintext is encrypted with AES-256-CBC (PKCS#7 padding)
// under a fresh 16-byte IV, and an HMAC-SHA256 tag is computed over the
// ciphertext with the same key. Decryption verifies the tag in constant time
// before touching the ciphertext, so a wrong password and a tampered file
// both surface as ErrIntegrity.
//
// The serialized form is a JSON object with base64 binary fields:
//
//	{"version":"1.0","salt":"...","iv":"...","data":"...","hmac":"..."}
//
// Backup envelopes always use DefaultIterations. WithIterations lowers the
// work factor for device-local documents that are read on every start.
package envelope
