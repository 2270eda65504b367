// internal/media/s3.go
// Package media provides S3-compatible storage for catalog artwork (posters,
// backdrops, avatars). Movies seeded with s3:// artwork URIs get short-lived
// presigned GET URLs substituted at read time, so the bucket can stay private.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client wraps the AWS S3 client for artwork operations.
type Client struct {
	client *s3.Client // AWS S3 client
	bucket string     // S3 bucket holding artwork objects
}

// NewClient creates a new S3 client for artwork operations.
// It supports both AWS S3 and S3-compatible services like MinIO.
func NewClient(endpoint, region, bucket, accessKey, secretKey string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO and other S3-compatible services
	})

	return &Client{
		client: client,
		bucket: bucket,
	}, nil
}

// ResolveURI turns an s3://bucket/key artwork URI into a presigned GET URL.
// URIs pointing elsewhere (plain https, other buckets) pass through unchanged.
func (c *Client) ResolveURI(ctx context.Context, uri string, expires time.Duration) (string, error) {
	prefix := fmt.Sprintf("s3://%s/", c.bucket)
	if !strings.HasPrefix(uri, prefix) {
		return uri, nil
	}
	return c.PresignGet(ctx, strings.TrimPrefix(uri, prefix), expires)
}

// PresignGet generates a presigned GET URL for an artwork object.
func (c *Client) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(c.client)

	presignResult, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign artwork GET: %w", err)
	}
	return presignResult.URL, nil
}
