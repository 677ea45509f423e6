// Package display turns accounts into the card data shown by compact views
// such as a tray popup or a desktop widget.
//
// Cards are plain values computed for one instant. Callers decide when to
// rebuild them; nothing here holds timers.
package display

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/otp"
)

// UrgentProgress is the progress at or below which a code is about to expire.
const UrgentProgress = 0.3

const defaultIssuer = "OTP"

// Card is the rendered state of one account. Index is 1-based.
type Card struct {
	AccountID        uuid.UUID `json:"accountId"`
	Issuer           string    `json:"issuer"`
	AccountName      string    `json:"accountName"`
	Initial          string    `json:"initial"`
	Type             otp.Type  `json:"type"`
	Code             string    `json:"code"`
	FormattedCode    string    `json:"formattedCode"`
	RemainingSeconds int       `json:"remainingSeconds"`
	Progress         float64   `json:"progress"`
	Urgent           bool      `json:"urgent"`
	Index            int       `json:"index"`
	Count            int       `json:"count"`
	HasNext          bool      `json:"hasNext"`
	HasPrev          bool      `json:"hasPrev"`
	Error            string    `json:"error,omitempty"`
}

// Empty is shown when there are no accounts.
func Empty() Card {
	return Card{
		AccountName:      "No accounts",
		Initial:          "?",
		FormattedCode:    "--- ---",
		RemainingSeconds: otp.DefaultPeriod,
		Progress:         1,
	}
}

// Order returns a copy sorted favorites first, then by sort order.
func Order(accounts []account.Account) []account.Account {
	out := append([]account.Account(nil), accounts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Favorite != out[j].Favorite {
			return out[i].Favorite
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// Build renders the card at a 0-based index of the ordered accounts. Out of
// range indexes are clamped.
func Build(accounts []account.Account, index int, at time.Time) (Card, error) {
	if len(accounts) == 0 {
		return Empty(), nil
	}
	ordered := Order(accounts)
	index = max(0, min(index, len(ordered)-1))
	return card(ordered, index, at)
}

// BuildAll renders every account in display order. An account whose code
// cannot be generated gets a card with Error set instead of failing the list.
func BuildAll(accounts []account.Account, at time.Time) ([]Card, error) {
	ordered := Order(accounts)
	cards := make([]Card, 0, len(ordered))
	for i := range ordered {
		c, err := card(ordered, i, at)
		if err != nil {
			c = unavailable(ordered, i, err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func card(ordered []account.Account, index int, at time.Time) (Card, error) {
	params := ordered[index].Params().WithDefaults()

	code, err := otp.GenerateCode(params, at)
	if err != nil {
		return Card{}, err
	}

	c := base(ordered, index)
	c.Type = params.Type
	c.Code = code
	c.FormattedCode = FormatCode(code)
	if params.Type == otp.TypeTOTP {
		c.RemainingSeconds = otp.RemainingSeconds(params.Period, at)
		c.Progress = otp.Progress(params.Period, at)
		c.Urgent = c.Progress <= UrgentProgress
	}
	return c, nil
}

func base(ordered []account.Account, index int) Card {
	a := ordered[index]
	c := Card{
		AccountID:   a.ID,
		Issuer:      a.Issuer,
		AccountName: a.AccountName,
		Initial:     a.Initial(),
		Type:        a.Type,
		Progress:    1,
		Index:       index + 1,
		Count:       len(ordered),
		HasNext:     index < len(ordered)-1,
		HasPrev:     index > 0,
	}
	if c.Issuer == "" {
		c.Issuer = defaultIssuer
	}
	return c
}

func unavailable(ordered []account.Account, index int, err error) Card {
	c := base(ordered, index)
	c.FormattedCode = Empty().FormattedCode
	c.Error = err.Error()
	return c
}

// FormatCode groups digits for reading: "123 456" for six digits and
// "1234 5678" style for longer codes.
func FormatCode(code string) string {
	switch {
	case len(code) < 6:
		return code
	case len(code) == 6:
		return code[:3] + " " + code[3:]
	default:
		return code[:4] + " " + code[4:]
	}
}
