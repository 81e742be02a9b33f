package storage

import (
	"context"
	"fmt"

	"github.com/smallbiznis/docflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

// New selects the provider named by STORAGE_PROVIDER.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Provider, error) {
	storageCfg := cfg.Storage
	log = log.Named("storage")

	switch storageCfg.Provider {
	case "local":
		log.Info("using local storage", zap.String("root", storageCfg.LocalRoot))
		return NewLocalProvider(storageCfg.LocalRoot), nil
	case "s3":
		provider, err := NewS3Provider(context.Background(), S3Options{
			Bucket:    storageCfg.Bucket,
			Region:    storageCfg.Region,
			Endpoint:  storageCfg.Endpoint,
			AccessKey: storageCfg.AccessKey,
			SecretKey: storageCfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		log.Info("using s3 storage", zap.String("bucket", storageCfg.Bucket))
		return provider, nil
	case "gcs", "":
		client, err := NewGCSClient(context.Background(), storageCfg.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		log.Info("using gcs storage", zap.String("bucket", storageCfg.Bucket))
		return NewGCSProvider(client, storageCfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", storageCfg.Provider)
	}
}
