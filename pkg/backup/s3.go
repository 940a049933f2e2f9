package backup

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/authkeep/internal/telemetry"
	"github.com/marmos91/authkeep/pkg/config"
)

// S3Uploader uploads backups to an S3 compatible bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
}

// NewS3Uploader creates an uploader with an existing client.
func NewS3Uploader(client *s3.Client, bucket string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket}
}

// NewS3UploaderFromConfig creates the S3 client from cfg. Static credentials
// are used when both keys are set; otherwise the SDK default chain applies.
func NewS3UploaderFromConfig(ctx context.Context, cfg config.S3BackupConfig) (*S3Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3Uploader(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket), nil
}

// Upload puts the file at path under key.
func (u *S3Uploader) Upload(ctx context.Context, key, path string) error {
	ctx, span := telemetry.StartSpan(ctx, "s3.put_object")
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.Bucket(u.bucket), telemetry.StorageKey(key))

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
