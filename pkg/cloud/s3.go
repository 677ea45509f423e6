package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const S3Driver = "s3"

// S3Client is the subset of the S3 API the provider calls.
type S3Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket         string `env:"BUCKET" yaml:"bucket"`
	Region         string `env:"REGION" yaml:"region"`
	AccessKeyID    string `env:"ACCESS_KEY_ID" yaml:"access_key_id"`
	SecretKey      string `env:"SECRET_KEY" yaml:"secret_key"`
	Endpoint       string `env:"ENDPOINT" yaml:"endpoint"` // for MinIO and friends
	Prefix         string `env:"PREFIX" yaml:"prefix"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE" yaml:"force_path_style"`
}

type S3Option func(*s3Options)

type s3Options struct {
	httpClient    *http.Client
	client        S3Client
	configOptions []func(*config.LoadOptions) error
	clientOptions []func(*s3.Options)
}

// WithS3Client injects a pre-configured client.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) { o.client = client }
}

func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) { o.httpClient = client }
}

func WithS3ConfigOption(option func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) { o.configOptions = append(o.configOptions, option) }
}

func WithS3ClientOption(option func(*s3.Options)) S3Option {
	return func(o *s3Options) { o.clientOptions = append(o.clientOptions, option) }
}

// S3Provider stores files as objects under an optional key prefix.
type S3Provider struct {
	client S3Client
	bucket string
	prefix string
	signed atomic.Bool
}

func NewS3Provider(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Provider, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("%w: s3 bucket and region are required", ErrInvalidConfig)
	}

	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if options.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
		}
		awsOptions = append(awsOptions, options.configOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range options.clientOptions {
				opt(o)
			}
		})
	}

	return &S3Provider{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (p *S3Provider) Name() string { return S3Driver }

func (p *S3Provider) IsAuthenticated() bool { return p.signed.Load() }

// Authenticate verifies the credentials can reach the bucket.
func (p *S3Provider) Authenticate(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		p.signed.Store(false)
		return classifyS3Error(err, "authenticate")
	}
	p.signed.Store(true)
	return nil
}

func (p *S3Provider) SignOut(context.Context) error {
	p.signed.Store(false)
	return nil
}

func (p *S3Provider) Upload(ctx context.Context, name string, data []byte) (*FileInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	key := joinKey(p.prefix, name)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyS3Error(err, "upload")
	}
	return p.FileInfo(ctx, name)
}

// Download fetches an object by its full key.
func (p *S3Provider) Download(ctx context.Context, id string) ([]byte, error) {
	key, err := cleanName(id)
	if err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err, "download")
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classifyS3Error(err, "download")
	}
	return data, nil
}

func (p *S3Provider) FileInfo(ctx context.Context, name string) (*FileInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	key := joinKey(p.prefix, name)

	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err, "stat")
	}

	info := &FileInfo{ID: key, Name: name}
	if out.LastModified != nil {
		info.ModifiedAt = out.LastModified.UTC()
	}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return info, nil
}

func (p *S3Provider) Delete(ctx context.Context, id string) error {
	key, err := cleanName(id)
	if err != nil {
		return err
	}
	if _, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return classifyS3Error(err, "delete")
	}
	if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return classifyS3Error(err, "delete")
	}
	return nil
}

func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}
	if mapped, ok := classifyTransport(err); ok {
		return fmt.Errorf("s3 %s: %w", operation, mapped)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("s3 %s: %w", operation, errors.Join(ErrNotFound, err))
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("s3 %s: %w", operation, errors.Join(ErrNotFound, err))
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("s3 %s: %w", operation, errors.Join(ErrInvalidConfig, err))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("s3 %s: %w", operation, errors.Join(ErrNotFound, err))
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"ExpiredToken", "InvalidToken", "Unauthorized":
			return fmt.Errorf("s3 %s: %w", operation, errors.Join(ErrAuthentication, err))
		case "SlowDown", "RequestTimeout", "ServiceUnavailable", "InternalError":
			return fmt.Errorf("s3 %s: %w", operation, errors.Join(ErrNetwork, err))
		}
	}

	return fmt.Errorf("s3 %s operation failed: %w", operation, err)
}
