package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the part of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Client builds a client from static configuration. Without keys the
// client is left without credentials.
func NewS3Client(config S3Config) *s3.Client {
	options := s3.Options{
		Region:       config.Region,
		UsePathStyle: config.UsePathStyle,
	}

	if config.Endpoint != "" {
		options.BaseEndpoint = aws.String(config.Endpoint)
	}

	if config.AccessKeyID != "" {
		options.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     config.AccessKeyID,
					SecretAccessKey: config.SecretAccessKey,
					Source:          "storefront",
				}, nil
			},
		))
	}

	return s3.New(options)
}

// S3Store uploads images to a bucket and returns their public URL.
type S3Store struct {
	client    S3API
	bucket    string
	prefix    string
	publicURL string
	now       func() time.Time
}

func NewS3Store(client S3API, bucket, prefix, publicURL string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		now:       time.Now,
	}
}

func (s *S3Store) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	now := s.now()
	key := s.prefix + SafeName(now, filename, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"original-filename": filename,
			"upload-time":       now.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload: s3 put %s: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}
