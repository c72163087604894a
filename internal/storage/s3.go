// Package storage keeps a copy of each batch archive outside the process.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/constants"
)

// ArchiveStore receives finished archives.
type ArchiveStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// PutObjectAPI is the slice of the S3 client the store uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket string
	Prefix string // e.g. "batches/"
	Region string
}

// S3Store writes archives to a bucket.
type S3Store struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Store loads the AWS default credential chain. It returns (nil, nil) when no bucket is configured.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3StoreWithAPI(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

func NewS3StoreWithAPI(client PutObjectAPI, cfg S3Config, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}
}

// ArchiveKey is "{prefix}{batchID}/renamed_pdfs.zip".
func (s *S3Store) ArchiveKey(batchID uuid.UUID) string {
	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + batchID.String() + "/" + constants.ArchiveName
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(constants.ArchiveMIME),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		s.logger.Error("storage.s3.put.failed", "bucket", s.bucket, "key", key, "err", err)
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	s.logger.Info("storage.s3.put.ok", "bucket", s.bucket, "key", key, "bytes", len(data))
	return nil
}

// PutArchive stores a batch archive under its standard key and returns the key.
func (s *S3Store) PutArchive(ctx context.Context, batchID uuid.UUID, data []byte) (string, error) {
	key := s.ArchiveKey(batchID)
	return key, s.Put(ctx, key, data)
}
