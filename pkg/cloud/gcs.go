package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const GCSDriver = "gcs"

// GCSConfig selects the bucket. Credentials come from the Authorizer or,
// without one, from Application Default Credentials.
type GCSConfig struct {
	Bucket string `env:"BUCKET" yaml:"bucket"`
	Prefix string `env:"PREFIX" yaml:"prefix"`
}

// Authorizer yields a token source once the user has signed in. The
// interactive part of any OAuth flow lives behind it.
type Authorizer interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

type AuthorizerFunc func(ctx context.Context) (oauth2.TokenSource, error)

func (f AuthorizerFunc) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	return f(ctx)
}

// StaticToken authorizes with a fixed access token.
func StaticToken(accessToken string) Authorizer {
	return AuthorizerFunc(func(context.Context) (oauth2.TokenSource, error) {
		if accessToken == "" {
			return nil, fmt.Errorf("%w: empty access token", ErrAuthentication)
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}), nil
	})
}

// GCSBucket is the object access the provider needs from a bucket.
type GCSBucket interface {
	Put(ctx context.Context, key string, data []byte) (*gcs.ObjectAttrs, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Attrs(ctx context.Context, key string) (*gcs.ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
}

type bucketOpener func(ctx context.Context, bucket string, opts []option.ClientOption) (GCSBucket, io.Closer, error)

type GCSOption func(*GCSProvider)

func WithAuthorizer(a Authorizer) GCSOption {
	return func(p *GCSProvider) { p.authorizer = a }
}

func WithGCSClientOption(opt option.ClientOption) GCSOption {
	return func(p *GCSProvider) { p.clientOpts = append(p.clientOpts, opt) }
}

// WithGCSBucket skips client construction and uses b directly.
func WithGCSBucket(b GCSBucket) GCSOption {
	return func(p *GCSProvider) {
		p.open = func(context.Context, string, []option.ClientOption) (GCSBucket, io.Closer, error) {
			return b, nil, nil
		}
	}
}

// GCSProvider stores files in a Google Cloud Storage bucket.
type GCSProvider struct {
	bucketName string
	prefix     string
	authorizer Authorizer
	clientOpts []option.ClientOption
	open       bucketOpener

	mu     sync.RWMutex
	bucket GCSBucket
	closer io.Closer
}

func NewGCSProvider(cfg GCSConfig, opts ...GCSOption) (*GCSProvider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", ErrInvalidConfig)
	}
	p := &GCSProvider{
		bucketName: cfg.Bucket,
		prefix:     cfg.Prefix,
		open:       openGCSBucket,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *GCSProvider) Name() string { return GCSDriver }

func (p *GCSProvider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bucket != nil
}

// Authenticate obtains a token and opens the bucket.
func (p *GCSProvider) Authenticate(ctx context.Context) error {
	opts := append([]option.ClientOption{}, p.clientOpts...)
	if p.authorizer != nil {
		ts, err := p.authorizer.TokenSource(ctx)
		if err != nil {
			return errors.Join(ErrAuthentication, err)
		}
		if _, err := ts.Token(); err != nil {
			if mapped, ok := classifyTransport(err); ok {
				return mapped
			}
			return errors.Join(ErrAuthentication, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}

	bucket, closer, err := p.open(ctx, p.bucketName, opts)
	if err != nil {
		return classifyGCSError(err, "authenticate")
	}

	p.mu.Lock()
	old := p.closer
	p.bucket, p.closer = bucket, closer
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (p *GCSProvider) SignOut(context.Context) error {
	p.mu.Lock()
	closer := p.closer
	p.bucket, p.closer = nil, nil
	p.mu.Unlock()
	if closer != nil {
		return closer.Close()
	}
	return nil
}

func (p *GCSProvider) Upload(ctx context.Context, name string, data []byte) (*FileInfo, error) {
	b, err := p.session()
	if err != nil {
		return nil, err
	}
	name, err = cleanName(name)
	if err != nil {
		return nil, err
	}
	key := joinKey(p.prefix, name)

	attrs, err := b.Put(ctx, key, data)
	if err != nil {
		return nil, classifyGCSError(err, "upload")
	}
	if attrs == nil {
		return p.FileInfo(ctx, name)
	}
	return gcsFileInfo(attrs, name), nil
}

func (p *GCSProvider) Download(ctx context.Context, id string) ([]byte, error) {
	b, err := p.session()
	if err != nil {
		return nil, err
	}
	key, err := cleanName(id)
	if err != nil {
		return nil, err
	}
	data, err := b.Get(ctx, key)
	if err != nil {
		return nil, classifyGCSError(err, "download")
	}
	return data, nil
}

func (p *GCSProvider) FileInfo(ctx context.Context, name string) (*FileInfo, error) {
	b, err := p.session()
	if err != nil {
		return nil, err
	}
	name, err = cleanName(name)
	if err != nil {
		return nil, err
	}
	attrs, err := b.Attrs(ctx, joinKey(p.prefix, name))
	if err != nil {
		return nil, classifyGCSError(err, "stat")
	}
	return gcsFileInfo(attrs, name), nil
}

func (p *GCSProvider) Delete(ctx context.Context, id string) error {
	b, err := p.session()
	if err != nil {
		return err
	}
	key, err := cleanName(id)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, key); err != nil {
		return classifyGCSError(err, "delete")
	}
	return nil
}

func (p *GCSProvider) session() (GCSBucket, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.bucket == nil {
		return nil, fmt.Errorf("%w: not signed in", ErrAuthentication)
	}
	return p.bucket, nil
}

func gcsFileInfo(attrs *gcs.ObjectAttrs, name string) *FileInfo {
	return &FileInfo{
		ID:         attrs.Name,
		Name:       name,
		ModifiedAt: attrs.Updated.UTC(),
		Size:       attrs.Size,
	}
}

func classifyGCSError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if mapped, ok := classifyTransport(err); ok {
		return fmt.Errorf("gcs %s: %w", operation, mapped)
	}

	switch {
	case errors.Is(err, gcs.ErrObjectNotExist):
		return fmt.Errorf("gcs %s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, gcs.ErrBucketNotExist):
		return fmt.Errorf("gcs %s: %w", operation, errors.Join(ErrInvalidConfig, err))
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("gcs %s: %w", operation, errors.Join(ErrAuthentication, err))
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("gcs %s: %w", operation, errors.Join(ErrAuthentication, err))
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("gcs %s: %w", operation, errors.Join(ErrNotFound, err))
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("gcs %s: %w", operation, errors.Join(ErrNetwork, err))
		}
	}

	return fmt.Errorf("gcs %s operation failed: %w", operation, err)
}

type gcsBucket struct {
	handle *gcs.BucketHandle
}

func openGCSBucket(ctx context.Context, bucket string, opts []option.ClientOption) (GCSBucket, io.Closer, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return &gcsBucket{handle: client.Bucket(bucket)}, client, nil
}

func (b *gcsBucket) Put(ctx context.Context, key string, data []byte) (*gcs.ObjectAttrs, error) {
	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Attrs(), nil
}

func (b *gcsBucket) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.handle.Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (b *gcsBucket) Attrs(ctx context.Context, key string) (*gcs.ObjectAttrs, error) {
	return b.handle.Object(key).Attrs(ctx)
}

func (b *gcsBucket) Delete(ctx context.Context, key string) error {
	return b.handle.Object(key).Delete(ctx)
}
