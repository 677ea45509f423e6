package cloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	RedisDriver = "redis"

	DefaultRedisPrefix = "otpkeeper:files:"

	fieldData     = "data"
	fieldModified = "modified"
	fieldSize     = "size"
)

type RedisConfig struct {
	URL            string        `env:"URL" envDefault:"redis://localhost:6379/0" yaml:"url"`
	Prefix         string        `env:"PREFIX" envDefault:"otpkeeper:files:" yaml:"prefix"`
	RetryAttempts  int           `env:"RETRY_ATTEMPTS" envDefault:"3" yaml:"retry_attempts"`
	RetryInterval  time.Duration `env:"RETRY_INTERVAL" envDefault:"2s" yaml:"retry_interval"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s" yaml:"connect_timeout"`
}

// RedisClient is the subset of redis.Cmdable the provider uses.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ConnectRedis dials the server, retrying until it answers PING or the
// attempts run out.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: empty redis url", ErrInvalidConfig)
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for range attempts {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNetwork, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, classifyRedisError(lastErr, "connect")
}

type RedisOption func(*RedisProvider)

func WithRedisPrefix(prefix string) RedisOption {
	return func(p *RedisProvider) { p.prefix = prefix }
}

func WithRedisClock(now func() time.Time) RedisOption {
	return func(p *RedisProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// RedisProvider keeps each file in a hash holding its bytes and metadata.
type RedisProvider struct {
	client RedisClient
	prefix string
	now    func() time.Time
	signed atomic.Bool
}

func NewRedisProvider(client RedisClient, opts ...RedisOption) (*RedisProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrInvalidConfig)
	}
	p := &RedisProvider{
		client: client,
		prefix: DefaultRedisPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *RedisProvider) Name() string { return RedisDriver }

func (p *RedisProvider) IsAuthenticated() bool { return p.signed.Load() }

func (p *RedisProvider) Authenticate(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		p.signed.Store(false)
		return classifyRedisError(err, "authenticate")
	}
	p.signed.Store(true)
	return nil
}

func (p *RedisProvider) SignOut(context.Context) error {
	p.signed.Store(false)
	return nil
}

func (p *RedisProvider) Upload(ctx context.Context, name string, data []byte) (*FileInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	key := p.prefix + name
	modified := p.now().UTC()

	err = p.client.HSet(ctx, key,
		fieldData, data,
		fieldModified, modified.Format(time.RFC3339Nano),
		fieldSize, len(data),
	).Err()
	if err != nil {
		return nil, classifyRedisError(err, "upload")
	}
	return &FileInfo{ID: key, Name: name, ModifiedAt: modified, Size: int64(len(data))}, nil
}

// Download reads a file by its hash key.
func (p *RedisProvider) Download(ctx context.Context, id string) ([]byte, error) {
	if !strings.HasPrefix(id, p.prefix) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := p.client.HGet(ctx, id, fieldData).Bytes()
	if err != nil {
		return nil, classifyRedisError(err, "download")
	}
	return data, nil
}

func (p *RedisProvider) FileInfo(ctx context.Context, name string) (*FileInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	key := p.prefix + name

	fields, err := p.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, classifyRedisError(err, "stat")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	info := &FileInfo{ID: key, Name: name}
	if info.ModifiedAt, err = time.Parse(time.RFC3339Nano, fields[fieldModified]); err != nil {
		return nil, fmt.Errorf("redis stat: malformed modification time on %s: %w", key, err)
	}
	if info.Size, err = strconv.ParseInt(fields[fieldSize], 10, 64); err != nil {
		info.Size = int64(len(fields[fieldData]))
	}
	return info, nil
}

func (p *RedisProvider) Delete(ctx context.Context, id string) error {
	if !strings.HasPrefix(id, p.prefix) {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	n, err := p.client.Del(ctx, id).Result()
	if err != nil {
		return classifyRedisError(err, "delete")
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func classifyRedisError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis %s: %w", operation, errors.Join(ErrNotFound, err))
	}
	if mapped, ok := classifyTransport(err); ok {
		return fmt.Errorf("redis %s: %w", operation, mapped)
	}

	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		if strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS") || strings.HasPrefix(msg, "NOPERM") {
			return fmt.Errorf("redis %s: %w", operation, errors.Join(ErrAuthentication, err))
		}
	}
	return fmt.Errorf("redis %s operation failed: %w", operation, err)
}
