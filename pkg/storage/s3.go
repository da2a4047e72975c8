package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/vidyalayaone/profile-api/pkg/config"
)

// S3Storage stores documents in an S3 bucket.
type S3Storage struct {
	client  *s3.S3
	bucket  string
	baseURL string
}

// NewS3Storage builds an S3-backed storage from configuration.
func NewS3Storage(cfg config.StorageConfig) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket name")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.S3Region),
	}
	if cfg.S3Key != "" && cfg.S3Secret != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.S3Key, cfg.S3Secret, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	baseURL := cfg.S3BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
	}

	return &S3Storage{
		client:  s3.New(sess),
		bucket:  cfg.S3Bucket,
		baseURL: baseURL,
	}, nil
}

// Upload puts the object into the bucket and returns its public URL.
func (s *S3Storage) Upload(ctx context.Context, name string, data []byte, contentType string) (*Object, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("put s3 object: %w", err)
	}
	return &Object{
		Name:        name,
		URL:         fmt.Sprintf("%s/%s", s.baseURL, name),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Delete removes the object. A missing key is treated as success.
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil
		}
		return fmt.Errorf("delete s3 object: %w", err)
	}
	return nil
}
