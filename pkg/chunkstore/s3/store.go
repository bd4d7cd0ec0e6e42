// Package s3 provides an S3-backed chunk store implementation. It works with
// Amazon S3 and S3-compatible stores (MinIO, localstack) via endpoint
// override and path-style addressing.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/obsync/obsync/pkg/chunkstore"
)

// Config holds configuration for the S3 chunk store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is the AWS region. Default: us-east-1.
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	// When set, path-style addressing is used.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// AccessKeyID / SecretAccessKey are static credentials. When empty the
	// default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// Store is an S3-backed implementation of chunkstore.Store.
type Store struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
}

// New creates an S3 chunk store from the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *awss3.Client
	if cfg.Endpoint != "" {
		client = awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for localstack/MinIO
		})
	} else {
		client = awss3.NewFromConfig(awsCfg)
	}

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewWithClient creates an S3 chunk store around an existing client (for testing).
func NewWithClient(client *awss3.Client, bucket, keyPrefix string) *Store {
	return &Store{client: client, bucket: bucket, keyPrefix: keyPrefix}
}

// objectKey prepends the configured prefix to a storage key.
func (s *Store) objectKey(storageKey string) string {
	if s.keyPrefix == "" {
		return storageKey
	}
	return path.Join(s.keyPrefix, storageKey)
}

// WriteChunk uploads the chunk with a single PutObject. S3 puts are atomic:
// readers observe either the whole object or nothing.
func (s *Store) WriteChunk(ctx context.Context, blobHash string, index int, data []byte) (string, error) {
	key := chunkstore.ChunkKey(blobHash, index)

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("put chunk %s: %w", key, err)
	}
	return key, nil
}

// ReadChunk downloads the object stored at the given storage key.
func (s *Store) ReadChunk(ctx context.Context, storageKey string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(storageKey)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, chunkstore.ErrChunkNotFound
		}
		return nil, fmt.Errorf("get chunk %s: %w", storageKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read chunk body %s: %w", storageKey, err)
	}
	return data, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	return err
}

// Close is a no-op for the S3 backend.
func (s *Store) Close() error {
	return nil
}

var _ chunkstore.Store = (*Store)(nil)
