package main

import (
	"context"
	"strings"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/maison-mobility/maison-gate/platform/go/storage"
)

// assetStore is the logo store picked by STORAGE_BACKEND. localDir is set when the gateway
// serves the assets itself.
type assetStore struct {
	store    storage.Store
	localDir string
}

func buildAssetStore(ctx context.Context, cfg config, logger *zap.Logger) (assetStore, func()) {
	switch cfg.StorageBackend {
	case "none":
		logger.Info("STORAGE_BACKEND=none; logo uploads disabled")
		return assetStore{}, func() {}
	case "gcs":
		if cfg.StorageBucket == "" {
			logger.Fatal("storage bucket required when STORAGE_BACKEND=gcs")
		}
		client, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Fatal("init gcs client", zap.Error(err))
		}
		store := storage.NewGCSStore(client, cfg.StorageBucket, cfg.StoragePublicURL)
		return assetStore{store: store}, func() { _ = client.Close() }
	case "local":
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			logger.Fatal("storage local dir required when STORAGE_BACKEND=local")
		}
		store, err := storage.NewLocalStore(cfg.StorageLocalDir, assetsPrefix)
		if err != nil {
			logger.Fatal("init local asset store", zap.Error(err))
		}
		return assetStore{store: store, localDir: store.Root()}, func() {}
	default:
		logger.Fatal("invalid STORAGE_BACKEND (use local, gcs or none)", zap.String("backend", cfg.StorageBackend))
	}
	return assetStore{}, func() {}
}
