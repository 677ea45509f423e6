// Package otp computes HMAC-based (RFC 4226) and time-based (RFC 6238)
// one-time passwords and converts OTP keys to and from otpauth:// URIs.
//
// Everything in this package is a pure function of its inputs. The current
// time is always passed in by the caller, which keeps code generation
// deterministic and easy to test.
//
// # Architecture
//
// The package has two parts.
//
// otp.go holds the code generator. HOTP performs the RFC 4226 dynamic
// truncation over HMAC-SHA1, HMAC-SHA256 or HMAC-SHA512. GenerateCode derives
// the moving factor from Params: the stored counter for HOTP accounts and
// floor(unix/period) for TOTP accounts. RemainingSeconds and Progress expose
// the window arithmetic used by countdown displays, and Verify checks a code
// against a window of neighbouring counters.
//
// uri.go implements the Key URI format used by QR codes:
//
//	otpauth://totp/Issuer:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Issuer&algorithm=SHA1&digits=6&period=30
//
// Parsing is lenient. Missing or unparsable optional parameters fall back to
// SHA1, 6 digits, a 30 second period and counter 0, and an issuer query
// parameter wins over the label prefix. The secret is mandatory.
//
// # Usage
//
//	key, err := otp.ParseURI(scanned)
//	if err != nil {
//		return err
//	}
//	code, err := otp.GenerateCode(key.Params(), time.Now())
//	left := otp.RemainingSeconds(key.Period, time.Now())
//
// # Error Handling
//
// Validation failures are reported with package sentinels such as
// ErrInvalidDigits, ErrEmptySecret and ErrInvalidPeriod. URI parsing failures
// always match ErrInvalidURI and additionally carry the underlying cause.
package otp
