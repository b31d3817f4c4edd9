// Package stores selects concrete persistence implementations from
// configuration: the relational metadata store and the object-storage
// backend behind the retrying client.
package stores

import (
	"sketchvault/config"
	"sketchvault/core"
	"sketchvault/objectstore"
	"sketchvault/objectstore/filesystem"
	"sketchvault/objectstore/minio"
	"sketchvault/objectstore/s3"
	"sketchvault/stores/memory"
	"sketchvault/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// NewDrawingStore builds the metadata store named by cfg.MetadataStore.
func NewDrawingStore(cfg *config.Config) (core.DrawingStore, error) {
	storageField := logrus.Fields{"metadataStore": cfg.MetadataStore}

	var (
		store core.DrawingStore
		err   error
	)
	switch cfg.MetadataStore {
	case "memory":
		store = memory.NewStore()
	default:
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
		if err != nil {
			return nil, err
		}
	}
	logrus.WithFields(storageField).Info("Use metadata store")
	return store, nil
}

// NewObjectBackend builds the object-storage backend named by cfg.StorageType.
func NewObjectBackend(cfg *config.Config) (objectstore.Backend, error) {
	storageField := logrus.Fields{"storageType": cfg.StorageType}

	var (
		backend objectstore.Backend
		err     error
	)
	switch cfg.StorageType {
	case "s3":
		if cfg.S3Bucket == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3Bucket
		backend = s3.NewBackend(cfg.S3Bucket, cfg.S3PublicBase)
	case "minio":
		storageField["endpoint"] = cfg.MinioEndpoint
		storageField["bucketName"] = cfg.MinioBucket
		backend, err = minio.NewBackend(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioPublicBase,
			cfg.MinioUseSSL,
		)
	default:
		storageField["storageType"] = "filesystem"
		storageField["basePath"] = cfg.LocalStoragePath
		backend, err = filesystem.NewBackend(cfg.LocalStoragePath, cfg.LocalPublicBase)
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(storageField).Info("Use object storage")
	return backend, nil
}
