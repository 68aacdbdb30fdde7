package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"consult-booking/core/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
)

type ObjectStore interface {
	PutJSON(ctx context.Context, key string, v any) error
}

type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(cfg config.StorageConfig) *S3Store {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return &S3Store{client: s3.New(opts), bucket: cfg.Bucket}
}

func (s *S3Store) PutJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// ReconciliationKey builds the object key for a payment callback that needs manual follow-up.
func ReconciliationKey(transactionRef string, at time.Time) string {
	ref := slug.Make(transactionRef)
	if ref == "" {
		ref = "unknown"
	}
	at = at.UTC()
	return fmt.Sprintf("payment-reconciliation/%s/%s-%d.json", at.Format("2006/01/02"), ref, at.UnixNano())
}
