package storage

import (
	"context"
	"time"

	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/storage"
	"github.com/samber/do/v2"
)

const storageInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (storage.BlobStore, error) {
		c := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), storageInitTimeout)
		defer cancel()
		return NewGCSStore(ctx, GCSStoreConfig{
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Bucket:          c.TranscriptBucket,
		})
	})
}
