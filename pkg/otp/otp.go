package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/dmitrymomot/otpkeeper/pkg/secret"
)

// Type distinguishes counter-based from time-based accounts.
type Type string

const (
	TypeTOTP Type = "totp"
	TypeHOTP Type = "hotp"
)

// ParseType maps a case-insensitive name to a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeTOTP, TypeHOTP:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, s)
	}
}

// Algorithm names the HMAC hash function.
type Algorithm string

const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
)

// ParseAlgorithm accepts "sha1", "SHA-256" and similar spellings.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))); a {
	case SHA1, SHA256, SHA512:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
}

func (a Algorithm) hash() (func() hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

const (
	DefaultDigits    = 6
	DefaultPeriod    = 30
	DefaultAlgorithm = SHA1

	MinDigits = 6
	MaxDigits = 8
)

var pow10 = [...]uint32{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000}

// Params is everything needed to compute a code for one account.
type Params struct {
	Type      Type
	Secret    string // Base32, normalized on use
	Algorithm Algorithm
	Digits    int
	Period    int   // seconds, TOTP only
	Counter   int64 // HOTP only
}

// WithDefaults returns a copy with zero-valued fields set to RFC defaults.
func (p Params) WithDefaults() Params {
	if p.Type == "" {
		p.Type = TypeTOTP
	}
	if p.Algorithm == "" {
		p.Algorithm = DefaultAlgorithm
	}
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if p.Period == 0 && p.Type == TypeTOTP {
		p.Period = DefaultPeriod
	}
	return p
}

// Validate checks the parameters without decoding the secret.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Secret) == "" {
		return ErrEmptySecret
	}
	if p.Digits < MinDigits || p.Digits > MaxDigits {
		return fmt.Errorf("%w: got %d", ErrInvalidDigits, p.Digits)
	}
	if _, err := p.Algorithm.hash(); err != nil {
		return err
	}
	switch p.Type {
	case TypeTOTP:
		if p.Period <= 0 {
			return fmt.Errorf("%w: got %d", ErrInvalidPeriod, p.Period)
		}
	case TypeHOTP:
		if p.Counter < 0 {
			return fmt.Errorf("%w: got %d", ErrInvalidCounter, p.Counter)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, string(p.Type))
	}
	return nil
}

// GenerateCode returns the code for p at the given instant.
// HOTP parameters ignore at and use p.Counter.
func GenerateCode(p Params, at time.Time) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	key, err := secret.Decode(p.Secret)
	if err != nil {
		return "", errors.Join(ErrInvalidSecret, err)
	}

	return HOTP(key, p.movingFactor(at), p.Algorithm, p.Digits)
}

func (p Params) movingFactor(at time.Time) uint64 {
	if p.Type == TypeHOTP {
		return uint64(p.Counter)
	}
	return uint64(Counter(p.Period, at))
}

// HOTP implements the RFC 4226 algorithm for raw key bytes.
func HOTP(key []byte, counter uint64, alg Algorithm, digits int) (string, error) {
	if digits < MinDigits || digits > MaxDigits {
		return "", fmt.Errorf("%w: got %d", ErrInvalidDigits, digits)
	}
	newHash, err := alg.hash()
	if err != nil {
		return "", err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(newHash, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation: the low nibble of the last byte selects four bytes,
	// the top bit is masked to keep the value positive.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", digits, value%pow10[digits]), nil
}

// Counter returns the TOTP time step containing at.
func Counter(period int, at time.Time) int64 {
	if period <= 0 {
		return 0
	}
	return floorDiv(at.Unix(), int64(period))
}

// RemainingSeconds returns the seconds left in the current window,
// a value in [1, period].
func RemainingSeconds(period int, at time.Time) int {
	if period <= 0 {
		return 0
	}
	return period - int(floorMod(at.Unix(), int64(period)))
}

// Progress is the fraction of the current window still remaining, in (0, 1].
func Progress(period int, at time.Time) float64 {
	if period <= 0 {
		return 0
	}
	return float64(RemainingSeconds(period, at)) / float64(period)
}

// Verify reports whether code matches p within skew windows.
// TOTP accepts codes from skew steps before and after at; HOTP looks ahead
// from p.Counter up to p.Counter+skew.
func Verify(p Params, code string, at time.Time, skew uint) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	key, err := secret.Decode(p.Secret)
	if err != nil {
		return false, errors.Join(ErrInvalidSecret, err)
	}

	code = strings.TrimSpace(code)
	if len(code) != p.Digits {
		return false, nil
	}

	base := int64(p.movingFactor(at))
	from := base - int64(skew)
	if p.Type == TypeHOTP || from < 0 {
		from = base
	}

	matched := 0
	for c := from; c <= base+int64(skew); c++ {
		candidate, err := HOTP(key, uint64(c), p.Algorithm, p.Digits)
		if err != nil {
			return false, err
		}
		matched |= subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
	}
	return matched == 1, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
