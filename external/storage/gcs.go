package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/auth/credentials"
	gcs "cloud.google.com/go/storage"
	"github.com/pairloop/pairloop/internal/storage"
	"google.golang.org/api/option"
)

type GCSStoreConfig struct {
	CredentialsJSON string
	Bucket          string
}

type GCSStore struct {
	client *gcs.Client
	bucket string
	http   *http.Client
}

func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (storage.BlobStore, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/devstorage.read_write"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	client, err := gcs.NewClient(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, http: &http.Client{}}, nil
}

func (s *GCSStore) UploadFromURL(ctx context.Context, srcURL, objectName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source media: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch source media: status %d", resp.StatusCode)
	}

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, resp.Body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", objectName, err)
	}
	return s.OutputURI(objectName), nil
}

func (s *GCSStore) DownloadBytes(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := parseBlobURI(uri)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", uri, err)
	}
	defer func() {
		_ = r.Close()
	}()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", uri, err)
	}
	return data, nil
}

func (s *GCSStore) OutputURI(objectName string) string {
	return "gs://" + s.bucket + "/" + objectName
}

func parseBlobURI(uri string) (bucket, object string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a blob uri: %s", uri)
	}
	bucket, object, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed blob uri: %s", uri)
	}
	return bucket, object, nil
}
