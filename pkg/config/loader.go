package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type options struct {
	file        string
	envFiles    []string
	prefix      string
	environment map[string]string
}

type Option func(*options)

// WithFile reads a YAML document before the environment is applied.
// A missing file is not an error.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithEnvFiles merges .env files under the environment. Missing files are skipped.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) { o.envFiles = append(o.envFiles, paths...) }
}

// WithPrefix prepends prefix to every env tag.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvironment replaces the process environment as the variable source.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) { o.environment = vars }
}

// Load populates v. See the package documentation for layer precedence.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.file != "" {
		if err := readYAML(o.file, v); err != nil {
			return err
		}
	}

	vars := o.environment
	if vars == nil {
		vars = environ()
	}
	if len(o.envFiles) > 0 {
		fileVars, err := readEnvFiles(o.envFiles)
		if err != nil {
			return err
		}
		merged := make(map[string]string, len(vars)+len(fileVars))
		for k, val := range fileVars {
			merged[k] = val
		}
		for k, val := range vars {
			merged[k] = val
		}
		vars = merged
	}

	if err := env.ParseWithOptions(v, env.Options{
		Prefix:                       o.prefix,
		Environment:                  vars,
		SetDefaultsForZeroValuesOnly: true,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Join(ErrReadFile, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Join(ErrParsingConfig, fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

// readEnvFiles returns the union of the files; earlier files win.
func readEnvFiles(paths []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, path := range paths {
		vars, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errors.Join(ErrReadFile, err)
		}
		for k, val := range vars {
			if _, ok := out[k]; !ok {
				out[k] = val
			}
		}
	}
	return out, nil
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, val, ok := strings.Cut(kv, "="); ok {
			vars[k] = val
		}
	}
	return vars
}
