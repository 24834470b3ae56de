package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/forge/log"
	"github.com/justapithecus/forge/types"
)

// S3Config holds configuration for the S3 archive backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// s3API is the slice of the S3 client the archiver uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 archives runs to an S3-compatible object store.
type S3 struct {
	client s3API
	config S3Config
	logger *log.Logger
}

var _ Archiver = (*S3)(nil)

// NewS3 creates an S3 archiver using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3(ctx context.Context, cfg S3Config, logger *log.Logger) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3(s3.NewFromConfig(awsConfig, s3Opts...), cfg, logger), nil
}

func newS3(client s3API, cfg S3Config, logger *log.Logger) *S3 {
	if logger == nil {
		logger = log.Nop()
	}
	return &S3{client: client, config: cfg, logger: logger}
}

// Archive uploads the journal and report under the run's partition key.
func (a *S3) Archive(ctx context.Context, meta types.RunMeta, day string, journalPath string, report *types.RunReport) error {
	journal, err := os.ReadFile(journalPath)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if err := a.put(ctx, a.key(day, meta.RunID, journalObjectName), journal); err != nil {
		return fmt.Errorf("failed to archive journal: %w", err)
	}

	data, err := encodeReport(report)
	if err != nil {
		return err
	}
	if err := a.put(ctx, a.key(day, meta.RunID, reportObjectName), data); err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}

	a.logger.Info("archived run", map[string]any{
		"partition": partitionPrefix(day, meta.RunID),
		"bucket":    a.config.Bucket,
	})
	return nil
}

func (a *S3) key(day, runID, name string) string {
	return path.Join(a.config.Prefix, partitionPrefix(day, runID), name)
}

func (a *S3) put(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.config.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	return err
}
