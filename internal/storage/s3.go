package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignTTL = 15 * time.Minute

var ErrNotConfigured = errors.New("evidence storage is not configured")

type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// EvidenceStore keeps evidence files in an S3 compatible bucket under
// apprenticeId/goalId/filename.
type EvidenceStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewEvidenceStore(ctx context.Context, cfg Config) (*EvidenceStore, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and most self-hosted endpoints need path-style addressing.
		o.UsePathStyle = cfg.Endpoint != ""
	})
	return &EvidenceStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// GoalPrefix is the key prefix of a goal's evidence.
func GoalPrefix(apprenticeID, goalID string) string {
	return apprenticeID + "/" + goalID + "/"
}

func (s *EvidenceStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	logger.Log.WithField("key", key).Info("Evidence file uploaded")
	return nil
}

// List returns the files under prefix with short-lived download URLs.
func (s *EvidenceStore) List(ctx context.Context, prefix string) ([]models.EvidenceFile, error) {
	files := []models.EvidenceFile{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
			}, s3.WithPresignExpires(presignTTL))
			if err != nil {
				return nil, fmt.Errorf("failed to presign %s: %w", key, err)
			}
			files = append(files, models.EvidenceFile{
				Name:         path.Base(key),
				Path:         key,
				Size:         aws.ToInt64(obj.Size),
				URL:          req.URL,
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return files, nil
}

func (s *EvidenceStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix one by one and stops at
// the first failure.
func (s *EvidenceStore) DeletePrefix(ctx context.Context, prefix string) error {
	if !strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("refusing to delete non-directory prefix %q", prefix)
	}
	files, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := s.Delete(ctx, f.Path); err != nil {
			return err
		}
	}
	return nil
}
