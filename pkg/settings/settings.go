// Package settings holds user preferences and device-local sync state.
package settings

import (
	"time"
)

const (
	ThemeSystem = "System"
	ThemeLight  = "Light"
	ThemeDark   = "Dark"

	LanguageSystem = "System"
)

// Settings are the persisted application preferences.
type Settings struct {
	AutoCopyToClipboard   bool      `json:"autoCopyToClipboard"`
	ClipboardClearSeconds int       `json:"clipboardClearSeconds"`
	ShowCopyNotification  bool      `json:"showCopyNotification"`
	RequireAuthentication bool      `json:"requireAuthentication"`
	StartMinimized        bool      `json:"startMinimized"`
	MinimizeToTray        bool      `json:"minimizeToTray"`
	Theme                 string    `json:"theme"`
	Language              string    `json:"language"`
	CloudSync             CloudSync `json:"cloudSync"`
	Hotkeys               Hotkeys   `json:"hotkeys"`
}

// CloudSync configures synchronization. LastSyncTime is device-local.
type CloudSync struct {
	Enabled             bool       `json:"enabled"`
	Provider            string     `json:"provider"`
	LastSyncTime        *time.Time `json:"lastSyncTime"`
	AutoSync            bool       `json:"autoSync"`
	SyncIntervalMinutes int        `json:"syncIntervalMinutes"`
}

// Interval returns the auto sync period, never less than one minute.
func (c CloudSync) Interval() time.Duration {
	if c.SyncIntervalMinutes < 1 {
		return time.Minute
	}
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

type Hotkeys struct {
	ShowPopup string `json:"showPopup"`
	QuickCopy string `json:"quickCopy"`
}

// Default returns the settings of a fresh install.
func Default() Settings {
	return Settings{
		AutoCopyToClipboard:   true,
		ClipboardClearSeconds: 30,
		ShowCopyNotification:  true,
		MinimizeToTray:        true,
		Theme:                 ThemeSystem,
		Language:              LanguageSystem,
		CloudSync: CloudSync{
			AutoSync:            true,
			SyncIntervalMinutes: 15,
		},
		Hotkeys: Hotkeys{
			ShowPopup: "Ctrl+Shift+O",
			QuickCopy: "Ctrl+Shift+C",
		},
	}
}

func (s Settings) clone() Settings {
	if s.CloudSync.LastSyncTime != nil {
		t := *s.CloudSync.LastSyncTime
		s.CloudSync.LastSyncTime = &t
	}
	return s
}
