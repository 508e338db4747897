package blob

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/versio-data/versio/common/config"
)

// S3Backend stores blobs in an S3-compatible object store (AWS S3, MinIO).
// Layout: <bucket>/staging/<uuid> for staged blobs, <bucket>/objects/<hash>
// for promoted ones.
type S3Backend struct {
	client *minio.Client
	bucket string
}

// NewS3Backend creates an S3 backend from configuration, creating the
// bucket if it does not exist yet.
func NewS3Backend(ctx context.Context, cfg config.BlobConfig) (*S3Backend, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.S3Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.S3Bucket, err)
		}
	}

	return &S3Backend{
		client: client,
		bucket: cfg.S3Bucket,
	}, nil
}

// Scheme returns "s3"
func (b *S3Backend) Scheme() string {
	return "s3"
}

// Stage uploads the stream to a staging key, hashing while the upload reads
func (b *S3Backend) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	tempKey := "staging/" + uuid.NewString()
	hasher := sha256.New()

	// Size -1 makes minio stream the upload in parts, so nothing is
	// buffered in full. The tee feeds the hasher as parts are read.
	info, err := b.client.PutObject(ctx, b.bucket, tempKey, io.TeeReader(r, hasher), -1,
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return nil, fmt.Errorf("stage blob to s3: %w", err)
	}

	var sum [sha256.Size]byte
	hasher.Sum(sum[:0])

	return &Staged{
		Hash:    FormatHash(sum),
		Size:    info.Size,
		tempKey: tempKey,
	}, nil
}

// Promote server-side copies the staged object to its content-addressed key
func (b *S3Backend) Promote(ctx context.Context, staged *Staged) (string, error) {
	_, err := b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: b.bucket, Object: b.objectKey(staged.Hash)},
		minio.CopySrcOptions{Bucket: b.bucket, Object: staged.tempKey},
	)
	if err != nil {
		return "", fmt.Errorf("promote blob in s3: %w", err)
	}

	if err := b.client.RemoveObject(ctx, b.bucket, staged.tempKey, minio.RemoveObjectOptions{}); err != nil {
		// The copy already succeeded; a leaked staging object is harmless
		return b.Location(staged.Hash), nil
	}

	return b.Location(staged.Hash), nil
}

// Discard removes a staged object
func (b *S3Backend) Discard(ctx context.Context, staged *Staged) error {
	if err := b.client.RemoveObject(ctx, b.bucket, staged.tempKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("discard staged blob: %w", err)
	}
	return nil
}

// Location returns the s3:// URI for a content hash
func (b *S3Backend) Location(hash string) string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.objectKey(hash))
}

// Open streams the object behind an s3:// location URI
func (b *S3Backend) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	_, path, err := SplitLocation(location)
	if err != nil {
		return nil, err
	}
	bucket, key, found := strings.Cut(path, "/")
	if !found {
		return nil, fmt.Errorf("malformed s3 location %q", location)
	}
	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", location, err)
	}
	return obj, nil
}

func (b *S3Backend) objectKey(hash string) string {
	return "objects/" + hashHex(hash)
}
