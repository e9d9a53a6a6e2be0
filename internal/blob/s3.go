package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AnyUserName/pixconv/internal/hasher"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignExpiry bounds how long an S3 URL stays valid.
const DefaultPresignExpiry = 15 * time.Minute

// S3Config holds S3 connection settings.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // S3-compatible services such as MinIO
	Expiry   time.Duration
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store uploads blobs to a bucket and returns presigned GET URLs.
type S3Store struct {
	client  objectPutter
	presign objectPresigner
	bucket  string
	prefix  string
	expiry  time.Duration
}

// NewS3Store loads the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})
	return newS3Store(client, s3.NewPresignClient(client), cfg), nil
}

func newS3Store(client objectPutter, presign objectPresigner, cfg S3Config) *S3Store {
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{
		client:  client,
		presign: presign,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		expiry:  expiry,
	}
}

// Key returns the object key data is stored under.
func (s *S3Store) Key(data []byte, mime string) string {
	return s.prefix + hasher.Sum(data, hasher.FullLen) + "." + extensionFor(mime)
}

// Put uploads data and returns a presigned URL for it.
func (s *S3Store) Put(ctx context.Context, data []byte, mime string) (string, error) {
	key := s.Key(data, mime)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mime),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}
