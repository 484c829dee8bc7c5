package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/edu-cms/pkg/educms"
)

const backendName = "s3"

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Optional key prefix inside the bucket
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the educms.MediaStore interface
type Backend struct {
	client          *s3.Client
	bucket          string
	presignClient   *s3.PresignClient
	presignDuration time.Duration
	config          Config
}

var _ educms.MediaStore = (*Backend)(nil)

// New creates a new S3-compatible media backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.PresignDuration == 0 {
		config.PresignDuration = 3600
	}
	config.Prefix = strings.Trim(config.Prefix, "/")

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:          client,
		bucket:          config.Bucket,
		presignClient:   s3.NewPresignClient(client),
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(ctx); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return backend, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err == nil {
		return nil
	}
	var noSuchBucket *types.NoSuchBucket
	if !isNotFound(err) && !errors.As(err, &noSuchBucket) && !strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}
	if b.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return err
	}
	return nil
}

// Store uploads r under a fresh key
func (b *Backend) Store(ctx context.Context, r io.Reader, ext string) (string, error) {
	path := educms.NewMediaPath(ext)
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
		Body:   r,
	}
	b.applySSE(input)

	if _, err := manager.NewUploader(b.client).Upload(ctx, input); err != nil {
		return "", b.fail(path, "store", fmt.Errorf("failed to upload to S3: %w", err))
	}
	return path, nil
}

// Open downloads a stored object
func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	cleaned, err := educms.CleanMediaPath(path)
	if err != nil {
		return nil, b.fail(path, "open", err)
	}
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(cleaned)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, b.fail(path, "open", educms.ErrNotFound)
		}
		return nil, b.fail(path, "open", fmt.Errorf("failed to download from S3: %w", err))
	}
	return result.Body, nil
}

// Delete removes a stored object. S3 deletes are idempotent and missing
// keys are reported as success.
func (b *Backend) Delete(ctx context.Context, path string) error {
	cleaned, err := educms.CleanMediaPath(path)
	if err != nil {
		return b.fail(path, "delete", err)
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(cleaned)),
	})
	if err != nil && !isNotFound(err) {
		return b.fail(path, "delete", fmt.Errorf("failed to delete from S3: %w", err))
	}
	return nil
}

// PresignURL returns a time-limited download URL for a stored object
func (b *Backend) PresignURL(ctx context.Context, path string) (string, error) {
	cleaned, err := educms.CleanMediaPath(path)
	if err != nil {
		return "", b.fail(path, "presign", err)
	}
	result, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.bucket),
		Key:                        aws.String(b.key(cleaned)),
		ResponseContentDisposition: aws.String("inline"),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.presignDuration
	})
	if err != nil {
		return "", b.fail(path, "presign", fmt.Errorf("failed to generate presigned URL: %w", err))
	}
	return result.URL, nil
}

func (b *Backend) key(path string) string {
	if b.config.Prefix == "" {
		return path
	}
	return b.config.Prefix + "/" + path
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

func (b *Backend) fail(path, op string, err error) error {
	return &educms.MediaError{Backend: backendName, Path: path, Op: op, Err: err}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
