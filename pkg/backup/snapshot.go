package backup

import (
	"strings"
	"time"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/envelope"
	"github.com/dmitrymomot/otpkeeper/pkg/settings"
)

const FormatVersion = "1.0"

// Snapshot is the decrypted content of a backup file.
type Snapshot struct {
	Version    string             `json:"version"`
	CreatedAt  time.Time          `json:"createdAt"`
	DeviceName string             `json:"deviceName"`
	Accounts   []account.Account  `json:"accounts"`
	Settings   *settings.Settings `json:"settings"`
	Checksum   string             `json:"checksum"`
}

// Checksum hashes the identifying triple of every account in order.
func Checksum(accounts []account.Account) string {
	parts := make([]string, len(accounts))
	for i, a := range accounts {
		parts[i] = a.Issuer + ":" + a.AccountName + ":" + a.SecretKey
	}
	return envelope.Hash(strings.Join(parts, "|"))
}

// Verify reports whether the stored checksum matches the accounts.
func (s *Snapshot) Verify() bool {
	return s.Checksum == Checksum(s.Accounts)
}

// Combine returns a snapshot carrying local's metadata with remote's
// accounts followed by the local accounts remote lacks. The second value
// is how many local accounts were appended. Neither input is modified.
func Combine(local, remote *Snapshot) (*Snapshot, int) {
	seen := make(map[string]struct{}, len(remote.Accounts))
	accounts := make([]account.Account, 0, len(remote.Accounts)+len(local.Accounts))
	for _, a := range remote.Accounts {
		seen[a.DedupKey()] = struct{}{}
		accounts = append(accounts, a)
	}

	extra := 0
	for _, a := range local.Accounts {
		if _, ok := seen[a.DedupKey()]; ok {
			continue
		}
		seen[a.DedupKey()] = struct{}{}
		accounts = append(accounts, a)
		extra++
	}

	return &Snapshot{
		Version:    local.Version,
		CreatedAt:  local.CreatedAt,
		DeviceName: local.DeviceName,
		Accounts:   accounts,
		Checksum:   Checksum(accounts),
	}, extra
}
