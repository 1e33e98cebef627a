// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config configures the S3-family storage backend (§4.2: "used
// interchangeably for ... S3-family ... backends").
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // non-empty selects an S3-compatible endpoint (MinIO, etc)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// s3Storage adapts an S3 bucket to the Storage interface. Grounded on the
// retry/backoff and error-classification idiom used by the example pack's
// S3 content store (aws-sdk-go-v2 + smithy-go error codes), generalized
// from a content-addressed blob store to this package's plain key/value
// contract.
type s3Storage struct {
	client *s3.Client
	bucket string
	prefix string

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var _ Storage = (*s3Storage)(nil)

func NewS3Storage(ctx context.Context, cfg S3Config) (Storage, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 200 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}
	return &s3Storage{
		client:         client,
		bucket:         cfg.Bucket,
		prefix:         cfg.Prefix,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}, nil
}

func (s *s3Storage) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *s3Storage) backoff(attempt int) time.Duration {
	d := s.initialBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if d > s.maxBackoff {
		d = s.maxBackoff
	}
	return d
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

// isS3Retryable classifies the IoError retry policy (§7: "Retried once with
// exponential backoff at the backend layer for transient classes").
func isS3Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestThrottled", "SlowDown",
			"InternalError", "ServiceUnavailable", "ServiceException":
			return true
		case "NoSuchKey", "NotFound", "AccessDenied", "Forbidden", "InvalidRequest":
			return false
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout")
}

func (s *s3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	objKey := s.objectKey(key)
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff(attempt - 1)):
			}
		}
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objKey)})
		if err == nil {
			defer out.Body.Close()
			return io.ReadAll(out.Body)
		}
		lastErr = err
		if isS3NotFound(err) {
			return nil, &NotFoundError{Key: key}
		}
		if !isS3Retryable(err) {
			break
		}
	}
	return nil, fmt.Errorf("s3 get %s: %w", key, lastErr)
}

func (s *s3Storage) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	objKey := s.objectKey(key)
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff(attempt - 1)):
			}
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objKey),
			Body:   bytes.NewReader(data),
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !isS3Retryable(err) {
			break
		}
	}
	return fmt.Errorf("s3 put %s: %w", key, lastErr)
}

func (s *s3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	objKey := s.objectKey(key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objKey)})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	objKey := s.objectKey(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objKey)})
	if err != nil && !isS3NotFound(err) {
		return err
	}
	return nil
}

func (s *s3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := s.objectKey(prefix)
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if s.prefix != "" {
				k = strings.TrimPrefix(k, s.prefix+"/")
			}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *s3Storage) Close() error { return nil }
