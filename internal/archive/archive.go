package archive

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	defaultBucket = "dunelink-results"
	defaultRegion = "us-east-1"
	csvType       = "text/csv; charset=utf-8"
)

// Archiver keeps a copy of every produced CSV.
type Archiver interface {
	Put(ctx context.Context, queryID int64, executionID, csv string) (string, error)
}

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	region          string
	useSSL          bool
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		if bucket != "" {
			c.bucket = bucket
		}
	}
}

func WithCredentials(accessKey, secretAccessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
		c.secretAccessKey = secretAccessKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		bucket: defaultBucket,
		region: defaultRegion,
		useSSL: false,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

type MinioArchiver struct {
	cfg    *minioConfig
	client *minio.Client
}

var _ Archiver = (*MinioArchiver)(nil)

func NewMinioArchiver(opts ...MinioOpts) (*MinioArchiver, error) {
	cfg := newConfig(opts...)
	if cfg.endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is empty")
	}

	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, err
	}

	return &MinioArchiver{cfg: cfg, client: minioClient}, nil
}

// EnsureBucket creates the bucket when it is missing.
func (a *MinioArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.cfg.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.cfg.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.cfg.bucket, minio.MakeBucketOptions{Region: a.cfg.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.cfg.bucket, err)
	}
	zap.S().Named("archive").Infow("bucket created", "bucket", a.cfg.bucket)
	return nil
}

// Put uploads the CSV under {query_id}/{execution_id}.csv and returns the object name.
func (a *MinioArchiver) Put(ctx context.Context, queryID int64, executionID, csv string) (string, error) {
	name := ObjectName(queryID, executionID)

	_, err := a.client.PutObject(ctx, a.cfg.bucket, name, strings.NewReader(csv), int64(len(csv)), minio.PutObjectOptions{
		ContentType: csvType,
		UserMetadata: map[string]string{
			"query-id":     strconv.FormatInt(queryID, 10),
			"execution-id": executionID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s/%s: %w", a.cfg.bucket, name, err)
	}
	return name, nil
}

func ObjectName(queryID int64, executionID string) string {
	return path.Join(strconv.FormatInt(queryID, 10), executionID+".csv")
}
