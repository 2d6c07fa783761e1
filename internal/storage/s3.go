package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/motionlab/backend/internal/config"
)

// S3Storage implements AssetStorage backed by an S3-compatible service.
type S3Storage struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	baseURL    string
	presignTTL time.Duration
}

// NewS3Storage configures a client targeting the provided object store.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3Storage{
		client:     client,
		uploader:   uploader,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		baseURL:    strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		presignTTL: ttl,
	}, nil
}

// Save uploads the provided content to the configured bucket and returns the stored key.
func (s *S3Storage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key, err := CleanKey(name)
	if err != nil {
		return "", fmt.Errorf("s3 storage: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   manager.ReadSeekCloser(r),
	}
	if s.baseURL != "" {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	return key, nil
}

// Open streams an object's body. The caller closes it.
func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := CleanKey(name)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: %w", err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissing(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 storage get %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 reports success for missing keys.
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	key, err := CleanKey(name)
	if err != nil {
		return fmt.Errorf("s3 storage: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissing(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("s3 storage delete %s: %w", key, err)
	}
	return nil
}

// URL returns the public location when a base URL is configured, otherwise a presigned GET.
func (s *S3Storage) URL(ctx context.Context, name string) (string, error) {
	key, err := CleanKey(name)
	if err != nil {
		return "", fmt.Errorf("s3 storage: %w", err)
	}

	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key), nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("s3 storage presign %s: %w", key, err)
	}
	return req.URL, nil
}

func isMissing(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

var _ AssetStorage = (*S3Storage)(nil)
