package account

import (
	"errors"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/otp"
	"github.com/dmitrymomot/otpkeeper/pkg/secret"
)

// Account is one OTP credential.
type Account struct {
	ID          uuid.UUID     `json:"id"`
	Issuer      string        `json:"issuer"`
	AccountName string        `json:"accountName"`
	SecretKey   string        `json:"secretKey"`
	Type        otp.Type      `json:"type"`
	Algorithm   otp.Algorithm `json:"algorithm"`
	Digits      int           `json:"digits"`
	Period      int           `json:"period"`
	Counter     int64         `json:"counter"`
	Favorite    bool          `json:"favorite"`
	SortOrder   int           `json:"sortOrder"`
	FolderID    *uuid.UUID    `json:"folderId"`
	Icon        string        `json:"icon,omitempty"`
	Color       string        `json:"color,omitempty"`
	Notes       *string       `json:"notes"`
	CreatedAt   time.Time     `json:"createdAt"`
	LastUsedAt  *time.Time    `json:"lastUsedAt"`
}

// New returns a TOTP account with default parameters.
func New(issuer, accountName, secretKey string) Account {
	return Account{
		Issuer:      issuer,
		AccountName: accountName,
		SecretKey:   secretKey,
	}.WithDefaults()
}

// FromKey converts a parsed otpauth key into an account.
func FromKey(k otp.Key) Account {
	return Account{
		Issuer:      k.Issuer,
		AccountName: k.AccountName,
		SecretKey:   k.Secret,
		Type:        k.Type,
		Algorithm:   k.Algorithm,
		Digits:      k.Digits,
		Period:      k.Period,
		Counter:     k.Counter,
	}.WithDefaults()
}

// WithDefaults fills zero-valued OTP parameters and normalizes the secret.
func (a Account) WithDefaults() Account {
	p := a.Params().WithDefaults()
	a.Type, a.Algorithm, a.Digits, a.Period = p.Type, p.Algorithm, p.Digits, p.Period
	a.SecretKey = secret.Normalize(a.SecretKey)
	return a
}

// Params returns the code generation parameters.
func (a Account) Params() otp.Params {
	return otp.Params{
		Type:      a.Type,
		Secret:    a.SecretKey,
		Algorithm: a.Algorithm,
		Digits:    a.Digits,
		Period:    a.Period,
		Counter:   a.Counter,
	}
}

// Key returns the otpauth representation.
func (a Account) Key() otp.Key {
	return otp.Key{
		Type:        a.Type,
		Issuer:      a.Issuer,
		AccountName: a.AccountName,
		Secret:      a.SecretKey,
		Algorithm:   a.Algorithm,
		Digits:      a.Digits,
		Period:      a.Period,
		Counter:     a.Counter,
	}
}

// URI renders the account as an otpauth:// URI.
func (a Account) URI() string {
	return a.Key().URI()
}

// Validate checks that the account can produce codes.
func (a Account) Validate() error {
	if err := a.Params().Validate(); err != nil {
		return errors.Join(ErrInvalidAccount, err)
	}
	if _, err := secret.Decode(a.SecretKey); err != nil {
		return errors.Join(ErrInvalidAccount, err)
	}
	return nil
}

// DisplayName is "Issuer: AccountName", or whichever part is present.
func (a Account) DisplayName() string {
	switch {
	case a.Issuer == "":
		return a.AccountName
	case a.AccountName == "":
		return a.Issuer
	default:
		return a.Issuer + ": " + a.AccountName
	}
}

// Initial is the upper-cased first letter of the issuer, or of the account
// name when the issuer is empty, or "?".
func (a Account) Initial() string {
	for _, s := range []string{a.Issuer, a.AccountName} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(s)
		return string(unicode.ToUpper(r))
	}
	return "?"
}

// DedupKey identifies the same credential across devices.
func (a Account) DedupKey() string {
	return a.Issuer + ":" + a.AccountName + ":" + a.SecretKey
}

// IncrementCounter advances a HOTP counter by one.
func (a *Account) IncrementCounter() error {
	if a.Type != otp.TypeHOTP {
		return ErrNotHOTP
	}
	if a.Counter == math.MaxInt64 {
		return ErrCounterOverflow
	}
	a.Counter++
	return nil
}

// InFolder reports whether the account belongs to folderID; nil means
// uncategorized.
func (a Account) InFolder(folderID *uuid.UUID) bool {
	if folderID == nil {
		return a.FolderID == nil
	}
	return a.FolderID != nil && *a.FolderID == *folderID
}

// Folder groups accounts.
type Folder struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon,omitempty"`
	Color     string    `json:"color,omitempty"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

func (f Folder) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.Join(ErrInvalidFolder, errors.New("name is required"))
	}
	return nil
}

// Position assigns a sort order to an item.
type Position struct {
	ID        uuid.UUID
	SortOrder int
}

func (a Account) clone() Account {
	if a.FolderID != nil {
		id := *a.FolderID
		a.FolderID = &id
	}
	if a.Notes != nil {
		n := *a.Notes
		a.Notes = &n
	}
	if a.LastUsedAt != nil {
		t := *a.LastUsedAt
		a.LastUsedAt = &t
	}
	return a
}
