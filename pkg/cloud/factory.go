package cloud

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures one provider.
type Config struct {
	Driver string      `env:"DRIVER" envDefault:"local" yaml:"driver"`
	Dir    string      `env:"DIR" yaml:"dir"`
	S3     S3Config    `envPrefix:"S3_" yaml:"s3"`
	GCS    GCSConfig   `envPrefix:"GCS_" yaml:"gcs"`
	Redis  RedisConfig `envPrefix:"REDIS_" yaml:"redis"`
}

type factoryOptions struct {
	s3          []S3Option
	gcs         []GCSOption
	redisClient RedisClient
}

type FactoryOption func(*factoryOptions)

func WithS3Options(opts ...S3Option) FactoryOption {
	return func(o *factoryOptions) { o.s3 = append(o.s3, opts...) }
}

func WithGCSOptions(opts ...GCSOption) FactoryOption {
	return func(o *factoryOptions) { o.gcs = append(o.gcs, opts...) }
}

// WithRedisClient skips dialing and uses client.
func WithRedisClient(client RedisClient) FactoryOption {
	return func(o *factoryOptions) { o.redisClient = client }
}

// NewFromDriver builds the provider named by cfg.Driver.
func NewFromDriver(ctx context.Context, cfg Config, opts ...FactoryOption) (Provider, error) {
	o := &factoryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case LocalDriver:
		return NewLocalProvider(cfg.Dir)
	case S3Driver:
		return NewS3Provider(ctx, cfg.S3, o.s3...)
	case GCSDriver:
		return NewGCSProvider(cfg.GCS, o.gcs...)
	case RedisDriver:
		client := o.redisClient
		if client == nil {
			c, err := ConnectRedis(ctx, cfg.Redis)
			if err != nil {
				return nil, err
			}
			client = c
		}
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = DefaultRedisPrefix
		}
		return NewRedisProvider(client, WithRedisPrefix(prefix))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
