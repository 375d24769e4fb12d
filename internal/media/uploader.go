// Package media uploads post attachments to S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bholo-app/bholo/internal/config"
	"github.com/bholo-app/bholo/internal/diag"
	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/model"
)

// Uploader stores post media in a MinIO/S3 bucket and returns durable
// public URLs.
type Uploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New connects to the configured object store and ensures the bucket
// exists.
func New(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logging.Info("Media bucket created", "bucket", cfg.Bucket)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.Secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return &Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload pushes a pending media item's local file to the bucket and returns
// the item in its uploaded state. Items that already carry a remote URL
// (externally-hosted GIFs, stickers) pass through without re-upload.
func (u *Uploader) Upload(ctx context.Context, postID string, m model.Media) (model.Media, error) {
	if m.State == model.MediaUploaded {
		return m, nil
	}

	localPath := strings.TrimPrefix(m.LocalURL, "file://")
	object := path.Join(postID, path.Base(localPath))

	info, err := u.client.FPutObject(ctx, u.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(m.Type),
	})
	if err != nil {
		return m, fmt.Errorf("upload %s: %w", object, err)
	}

	logging.Debug("Media uploaded", "object", object, "size", info.Size)
	diag.Record(diag.Event{Kind: diag.KindMediaUpload, ID: postID, Count: 1})

	m.State = model.MediaUploaded
	m.RemoteURL = u.publicURL + "/" + u.bucket + "/" + object
	m.LocalURL = ""
	return m, nil
}

func contentTypeFor(t model.MediaType) string {
	switch t {
	case model.MediaVideo:
		return "video/mp4"
	case model.MediaGIF:
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
