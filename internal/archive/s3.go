package archive

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultRegion = "us-east-1"

// S3Config holds optional overrides for S3-compatible endpoints (MinIO, LocalStack).
// Empty fields fall back to the default AWS configuration chain.
type S3Config struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	HTTPClient     *http.Client
}

// S3Client is a thin wrapper around the AWS SDK v2 S3 client.
type S3Client struct {
	api   *s3.Client
	creds aws.CredentialsProvider
}

// NewS3Client loads AWS configuration and builds a client. No request is made.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(cfg.HTTPClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &S3Client{api: client, creds: awsCfg.Credentials}, nil
}

// ClientFactory returns a factory that builds an S3Client from cfg on first use.
func (cfg S3Config) ClientFactory() ClientFactory {
	return func(ctx context.Context) (ObjectStore, error) {
		return NewS3Client(ctx, cfg)
	}
}

// PutFile uploads the file at localPath unchanged, with a SHA-256 checksum.
func (c *S3Client) PutFile(ctx context.Context, bucket, key, localPath string, metadata map[string]string) error {
	if c == nil {
		return errors.New("nil client")
	}
	if err := c.checkCredentials(ctx); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", localPath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	checksum := base64.StdEncoding.EncodeToString(h.Sum(nil))
	size := info.Size()

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		Body:              f,
		ContentLength:     aws.Int64(size),
		ContentType:       aws.String("application/json"),
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    aws.String(checksum),
		Metadata:          metadata,
	})
	return err
}

func (c *S3Client) checkCredentials(ctx context.Context) error {
	if c.creds == nil {
		return ErrMissingCredentials
	}
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}
	if !creds.HasKeys() {
		return ErrMissingCredentials
	}
	return nil
}
