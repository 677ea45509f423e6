package otpkeeper

import (
	"os"
	"path/filepath"

	"github.com/dmitrymomot/otpkeeper/pkg/cloud"
	"github.com/dmitrymomot/otpkeeper/pkg/config"
	"github.com/dmitrymomot/otpkeeper/pkg/widgetapi"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "OTPKEEPER_"

// Secret store backends.
const (
	SecretsAuto    = "auto"
	SecretsKeyring = "keyring"
	SecretsFile    = "file"
	SecretsMemory  = "memory"
)

type Config struct {
	// DataDir holds metadata, settings and sealed secrets. Defaults to
	// <user config dir>/otpkeeper.
	DataDir        string `env:"DATA_DIR" yaml:"data_dir"`
	SecretBackend  string `env:"SECRET_BACKEND" envDefault:"auto" yaml:"secret_backend"`
	KeyringService string `env:"KEYRING_SERVICE" envDefault:"otpkeeper" yaml:"keyring_service"`
	DeviceName     string `env:"DEVICE_NAME" yaml:"device_name"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" yaml:"log_format"`

	Sync   cloud.Config     `envPrefix:"SYNC_" yaml:"sync"`
	Widget widgetapi.Config `envPrefix:"WIDGET_" yaml:"widget"`
}

// LoadConfig reads file (optional), ./.env and OTPKEEPER_* variables.
func LoadConfig(file string) (Config, error) {
	var cfg Config
	opts := []config.Option{config.WithEnvFiles(".env"), config.WithPrefix(EnvPrefix)}
	if file != "" {
		opts = append(opts, config.WithFile(file))
	}
	if err := config.Load(&cfg, opts...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) dataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "otpkeeper"), nil
}

// syncConfigured reports whether cfg names a usable sync target. The local
// driver is the default and needs a directory.
func (c Config) syncConfigured() bool {
	switch c.Sync.Driver {
	case "":
		return false
	case cloud.LocalDriver:
		return c.Sync.Dir != ""
	default:
		return true
	}
}
