// Package secret converts shared OTP secrets between their user-facing
// Base32 form and raw key bytes.
//
// Input is normalized before decoding: whitespace and dashes are removed and
// letters are upper-cased, so secrets copied from provider pages such as
// "jbsw y3dp-ehpk 3pxp" decode the same as "JBSWY3DPEHPK3PXP". Trailing "="
// padding is ignored. Decoding is lenient about the final group length and
// drops the leftover bits that do not fill a byte, which matches how
// authenticator apps treat unpadded secrets.
//
// # Usage
//
//	key, err := secret.Decode("JBSW Y3DP EHPK 3PXP")
//	if err != nil {
//		// errors.Is(err, secret.ErrInvalidFormat)
//	}
//
//	s, err := secret.Generate(secret.DefaultSize) // 160-bit random secret
//
// The package is stateless and safe for concurrent use.
package secret
