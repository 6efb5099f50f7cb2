// Package attachment stores claim evidence files in an S3-compatible bucket
// and hands back stable references for the claim record.
package attachment

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// presigner is the subset of s3.PresignClient the store uses.
type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds S3-compatible storage configuration for evidence files.
type Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PresignTTL time.Duration
	MaxBytes   int64
}

// Store uploads evidence files and mints references to them.
type Store struct {
	cfg       Config
	client    s3Client
	presigner presigner
}

// New builds a Store against the configured bucket. Returns nil when the
// bucket is not configured; callers treat a nil store as "uploads disabled".
func New(cfg Config) *Store {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil
	}
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = 5 * time.Minute
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 20 << 20
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return &Store{
		cfg:       cfg,
		client:    client,
		presigner: s3.NewPresignClient(client),
	}
}

// Upload validates and stores one evidence file, returning its reference.
func (s *Store) Upload(ctx context.Context, memberID int64, filename, contentType string, body io.Reader, size int64) (model.Attachment, error) {
	if err := ValidateUpload(filename, contentType, size, s.cfg.MaxBytes); err != nil {
		return model.Attachment{}, err
	}

	id, key := BuildKey(memberID, filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		Metadata: map[string]string{
			"member_id": fmt.Sprintf("%d", memberID),
			"filename":  filename,
		},
	})
	if err != nil {
		return model.Attachment{}, fmt.Errorf("put evidence object: %w", err)
	}

	return model.Attachment{
		ID:        id,
		URL:       s.ObjectURL(key),
		Filename:  filename,
		SizeBytes: size,
	}, nil
}

// PresignPut returns a presigned PUT URL so the browser can upload evidence
// directly, plus the headers the client must send and the reference the claim
// should record once the upload finishes.
func (s *Store) PresignPut(ctx context.Context, memberID int64, filename, contentType string) (model.Attachment, string, map[string]string, error) {
	if err := ValidateFilename(filename); err != nil {
		return model.Attachment{}, "", nil, err
	}

	id, key := BuildKey(memberID, filename)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"member_id": fmt.Sprintf("%d", memberID),
			"filename":  filename,
		},
	}, func(o *s3.PresignOptions) { o.Expires = s.cfg.PresignTTL })
	if err != nil {
		return model.Attachment{}, "", nil, fmt.Errorf("presign evidence put: %w", err)
	}

	headers := map[string]string{
		"Content-Type":         contentType,
		"x-amz-meta-member_id": fmt.Sprintf("%d", memberID),
		"x-amz-meta-filename":  filename,
	}
	ref := model.Attachment{
		ID:       id,
		URL:      s.ObjectURL(key),
		Filename: filename,
	}
	return ref, req.URL, headers, nil
}

// Delete removes an evidence object a member uploaded but chose not to
// attach.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete evidence object: %w", err)
	}
	return nil
}

// ObjectURL returns the public URL for a stored object key.
func (s *Store) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.Endpoint, s.cfg.Bucket, key)
}
