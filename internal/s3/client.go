package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// API is the subset of the S3 client used here.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Client struct {
	Client API
}

// NewS3Client creates a new S3 client for region using the default
// credential chain.
func NewS3Client(ctx context.Context, region string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Client{
		Client: s3.NewFromConfig(cfg),
	}, nil
}

// PutObject stores body under bucket/key and returns the object's ETag and
// version id (empty for unversioned buckets).
func (s *S3Client) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) (string, string, error) {
	resp, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return aws.ToString(resp.ETag), aws.ToString(resp.VersionId), nil
}
