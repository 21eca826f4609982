package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pinworld/internal/config"
)

// objectPutter is the slice of the MinIO client the backend uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// minioStorage stores uploads in an S3-compatible bucket and answers with a
// GitHub-shaped body. It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	client    objectPutter
	cfg       config.MinIOConfig
	publicURL string
}

// NewMinIO creates a MinIO-backed content host.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (ContentHost, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return newMinIO(cli, cfg), nil
}

func newMinIO(client objectPutter, cfg config.MinIOConfig) *minioStorage {
	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}
	return &minioStorage{
		client:    client,
		cfg:       cfg,
		publicURL: strings.TrimRight(public, "/") + "/" + cfg.Bucket,
	}
}

func (m *minioStorage) Name() string { return config.BackendMinIO }

func (m *minioStorage) Configured() bool {
	return m.cfg.AccessKey != "" && m.cfg.SecretKey != ""
}

type contentInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// Put decodes content and streams it into the bucket under path.
func (m *minioStorage) Put(ctx context.Context, key, content string, opt PutOptions) (Response, error) {
	if !m.Configured() {
		return Response{}, ErrNotConfigured
	}

	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		body, _ := json.Marshal(map[string]string{"message": "content is not valid base64"})
		return Response{StatusCode: http.StatusUnprocessableEntity, ContentType: "application/json", Body: body}, nil
	}

	putOpts := minio.PutObjectOptions{
		ContentType:  mime.TypeByExtension(path.Ext(key)),
		UserMetadata: map[string]string{"message": opt.Message},
	}
	info, err := m.client.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), putOpts)
	if err != nil {
		return Response{}, fmt.Errorf("minio put %s: %w", key, err)
	}

	body, err := json.Marshal(map[string]contentInfo{
		"content": {
			Name:        path.Base(key),
			Path:        key,
			SHA:         info.ETag,
			Size:        int64(len(data)),
			DownloadURL: m.publicURL + "/" + key,
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode minio response: %w", err)
	}
	return Response{StatusCode: http.StatusCreated, ContentType: "application/json", Body: body}, nil
}
