// Package s3blob stores monthly ledger statements in an S3-compatible
// bucket. The archiver exports aged orders, deposits, and transactions as
// CSV objects; the reader serves them back for verification and review.
package s3blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds connection parameters for the statement bucket. An
// empty Endpoint targets AWS proper; setting it points the client at a
// MinIO or other S3-compatible deployment.
type ClientConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// Client wraps the S3 client together with the bucket every adapter in this
// package operates on.
type Client struct {
	s3c    *s3.Client
	bucket string
}

// New builds a Client from static credentials. It does not touch the
// network; call Health to verify the bucket is reachable.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	s3c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{s3c: s3c, bucket: cfg.Bucket}, nil
}

// Health verifies the statement bucket exists and is accessible.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3c.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close exists for symmetry with the other backends; the S3 client holds no
// persistent connection.
func (c *Client) Close() error {
	return nil
}

// S3 returns the raw SDK client for the adapters in this package.
func (c *Client) S3() *s3.Client {
	return c.s3c
}

// Bucket returns the configured statement bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// normaliseEndpoint prefixes a scheme when the configured endpoint lacks
// one, honouring the UseSSL flag.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
