package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
)

type gcsStore struct {
	client *storage.Client
	bucket string
}

func gcsClientOptions(cfg Config) []option.ClientOption {
	if cfg.Mode == ModeGCSEmulator {
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return append(opts, option.WithScopes(storage.ScopeReadWrite))
}

func newGCSStore(ctx context.Context, cfg Config) (*gcsStore, error) {
	if cfg.Mode == ModeGCSEmulator {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"))
	}
	client, err := storage.NewClient(ctx, gcsClientOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	return &gcsStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *gcsStore) Name() string { return "gcs" }

func (s *gcsStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *gcsStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, apierr.Wrap(apierr.ErrNotFound, "object %s", key)
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *gcsStore) Close() error { return s.client.Close() }
