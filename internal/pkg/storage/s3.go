package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/evpago/evpago/internal/pkg/env"
)

// S3Config holds the object storage connection settings.
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	PublicURL string
	PathStyle bool
}

// LoadS3Config reads the storage configuration from the environment. It
// returns an error when the required settings are missing so callers can
// fall back to NopStorage.
func LoadS3Config() (*S3Config, error) {
	cfg := &S3Config{
		Region:    env.GetEnv("S3_REGION", "us-east-1"),
		Bucket:    env.GetEnv("S3_BUCKET", ""),
		AccessKey: env.GetEnv("S3_ACCESS_KEY", ""),
		SecretKey: env.GetEnv("S3_SECRET_KEY", ""),
		Endpoint:  env.GetEnv("S3_ENDPOINT", ""),
		PublicURL: env.GetEnv("S3_PUBLIC_URL", ""),
		PathStyle: env.GetEnv("S3_PATH_STYLE", "false") == "true",
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is not set")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3 credentials are not set")
	}
	return cfg, nil
}

// S3Storage stores attachments in an S3 compatible bucket.
type S3Storage struct {
	client *s3.Client
	config *S3Config
}

// NewS3Storage creates a storage backend from the given configuration.
func NewS3Storage(cfg *S3Config) (*S3Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Storage{client: client, config: cfg}, nil
}

// SetupStorage wires the configured backend, falling back to NopStorage when
// object storage is not configured.
func SetupStorage() Storage {
	cfg, err := LoadS3Config()
	if err != nil {
		log.Warnf("object storage disabled: %v", err)
		return NopStorage{}
	}

	store, err := NewS3Storage(cfg)
	if err != nil {
		log.Errorf("failed to initialize object storage: %v", err)
		return NopStorage{}
	}
	log.Infof("object storage enabled (bucket %s)", cfg.Bucket)
	return store
}

func (s *S3Storage) SaveBase64Image(ctx context.Context, data string) (string, error) {
	if strings.TrimSpace(data) == "" {
		return "", nil
	}

	contentType, raw, err := DecodeBase64Image(data)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("photos/%s%s", uuid.New().String(), extensionFor(contentType))
	return s.put(ctx, key, raw, contentType)
}

func (s *S3Storage) SaveProof(ctx context.Context, orderID string, content []byte, contentType string) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("proofs/%s/%s%s", orderID, uuid.New().String(), extensionFor(contentType))
	return s.put(ctx, key, content, contentType)
}

func (s *S3Storage) put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

func (s *S3Storage) objectURL(key string) string {
	if s.config.PublicURL != "" {
		return strings.TrimSuffix(s.config.PublicURL, "/") + "/" + key
	}
	if s.config.Endpoint != "" {
		return strings.TrimSuffix(s.config.Endpoint, "/") + "/" + s.config.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.Bucket, s.config.Region, key)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ""
	}
}
