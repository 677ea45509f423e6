package otp

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrymomot/otpkeeper/pkg/secret"
)

const scheme = "otpauth"

// Key is the content of an otpauth:// URI.
type Key struct {
	Type        Type
	Issuer      string
	AccountName string
	Secret      string
	Algorithm   Algorithm
	Digits      int
	Period      int
	Counter     int64
}

// Params returns the code generation parameters of the key.
func (k Key) Params() Params {
	return Params{
		Type:      k.Type,
		Secret:    k.Secret,
		Algorithm: k.Algorithm,
		Digits:    k.Digits,
		Period:    k.Period,
		Counter:   k.Counter,
	}
}

// ParseURI parses an otpauth:// URI. Unknown query parameters are ignored.
func ParseURI(raw string) (*Key, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Join(ErrInvalidURI, err)
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return nil, fmt.Errorf("%w: unexpected scheme %q", ErrInvalidURI, u.Scheme)
	}

	typ, err := ParseType(u.Host)
	if err != nil {
		return nil, errors.Join(ErrInvalidURI, err)
	}

	q := u.Query()
	k := &Key{
		Type:      typ,
		Secret:    secret.Normalize(q.Get("secret")),
		Algorithm: DefaultAlgorithm,
		Digits:    intParam(q, "digits", DefaultDigits),
	}
	if k.Secret == "" {
		return nil, errors.Join(ErrInvalidURI, ErrMissingSecret)
	}
	if _, err := secret.Decode(k.Secret); err != nil {
		return nil, errors.Join(ErrInvalidURI, ErrInvalidSecret, err)
	}

	label := strings.TrimPrefix(u.Path, "/")
	if issuer, name, ok := strings.Cut(label, ":"); ok {
		k.Issuer = strings.TrimSpace(issuer)
		k.AccountName = strings.TrimSpace(name)
	} else {
		k.AccountName = strings.TrimSpace(label)
	}
	if issuer := strings.TrimSpace(q.Get("issuer")); issuer != "" {
		k.Issuer = issuer
	}

	if alg := q.Get("algorithm"); alg != "" {
		if k.Algorithm, err = ParseAlgorithm(alg); err != nil {
			return nil, errors.Join(ErrInvalidURI, err)
		}
	}

	switch typ {
	case TypeTOTP:
		k.Period = intParam(q, "period", DefaultPeriod)
	case TypeHOTP:
		k.Counter = counterParam(q)
	}

	if err := k.Params().Validate(); err != nil {
		return nil, errors.Join(ErrInvalidURI, err)
	}
	return k, nil
}

// URI renders the key as an otpauth:// URI. Algorithm and digits are always
// present, followed by period for TOTP keys or counter for HOTP keys.
func (k Key) URI() string {
	p := k.Params().WithDefaults()

	label := url.PathEscape(k.AccountName)
	if k.Issuer != "" {
		label = url.PathEscape(k.Issuer) + ":" + label
	}

	q := url.Values{}
	q.Set("secret", secret.Normalize(k.Secret))
	if k.Issuer != "" {
		q.Set("issuer", k.Issuer)
	}
	q.Set("algorithm", string(p.Algorithm))
	q.Set("digits", strconv.Itoa(p.Digits))
	if p.Type == TypeHOTP {
		q.Set("counter", strconv.FormatInt(p.Counter, 10))
	} else {
		q.Set("period", strconv.Itoa(p.Period))
	}

	return fmt.Sprintf("%s://%s/%s?%s", scheme, p.Type, label, q.Encode())
}

func intParam(q url.Values, name string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(q.Get(name)))
	if err != nil {
		return fallback
	}
	return v
}

func counterParam(q url.Values) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(q.Get("counter")), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
