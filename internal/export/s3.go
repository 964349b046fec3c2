package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"compstat/internal/completeness"
	"compstat/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type S3Config struct {
	Endpoint string
	Region   string
	Key      string
	Secret   string
}

// NewS3Client builds a client for an S3 compatible endpoint. With no
// endpoint the default AWS resolution applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					SigningRegion:     cfg.Region,
					HostnameImmutable: true,
				}, nil
			},
		)
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads the JSON document as one object.
type S3Sink struct {
	Client ObjectPutter
	Bucket string
	Key    string
	Logger *zap.Logger
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(u string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(u, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", u)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %q", u)
	}
	return bucket, key, nil
}

func (s S3Sink) Write(ctx context.Context, doc completeness.Document) error {
	if s.Bucket == "" || s.Key == "" {
		return completeness.ErrMissingExportPath
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal completeness: %w", err)
	}
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.Key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"sha256": util.SHA256Hex(body)},
	})
	if err != nil {
		return fmt.Errorf("upload completeness to s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	logger(s.Logger).Info("completeness uploaded", zap.String("bucket", s.Bucket), zap.String("key", s.Key))
	return nil
}
