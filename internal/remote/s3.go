package remote

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	appconfig "fotosito/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3 mirrors photos into an S3-compatible bucket under
// <prefix>/<location-code>/<filename>.
type S3 struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewS3 creates an S3 uploader from configuration. A custom endpoint
// switches the client to path-style addressing for S3-compatible
// providers.
func NewS3(cfg *appconfig.Config, logger *zap.Logger) (*S3, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{
		client:  client,
		bucket:  cfg.S3Bucket,
		prefix:  cfg.S3Prefix,
		timeout: cfg.UploadTimeout,
		logger:  logger,
	}, nil
}

// Upload puts the file into the bucket.
func (u *S3) Upload(ctx context.Context, localPath, folder, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(u.prefix, folder, filename)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	u.logger.Info("Photo mirrored to S3",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
	)
	return nil
}
