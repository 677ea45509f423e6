// Package securestore keeps OTP shared secrets out of the account metadata.
//
// Store is the capability every backend implements. Three backends ship with
// the package:
//
//   - Keyring stores values in the operating system credential vault
//     (Keychain, Secret Service, Windows Credential Manager).
//   - File stores each value as a sealed document under secrets/, encrypted
//     with the device protector.
//   - Memory keeps values in process memory, for tests and ephemeral use.
//
// Fallback composes two backends. Store tries the primary first and falls
// back to the secondary when the primary fails. Retrieve reads the secondary
// first, since it only holds values written while the primary was down, and
// moves such values back to the primary once it is reachable. If both
// backends fail the joined error is returned. Retrieved values are cached in
// a small LRU that is invalidated on Store and Remove.
//
//	store := securestore.NewFallback(
//		securestore.NewKeyring("otpkeeper"),
//		securestore.NewFile(sealedDocs),
//		securestore.WithLogger(log),
//	)
package securestore
