// Package config loads application configuration from environment variables.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all runtime configuration for the service.
type Config struct {
	JWTSecret string

	// Object storage backend: "s3", "minio" or "filesystem" (default).
	StorageType string

	// s3
	S3Bucket     string
	S3PublicBase string

	// minio (any S3-compatible endpoint)
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MinioPublicBase string

	// filesystem
	LocalStoragePath string
	LocalPublicBase  string

	// Metadata store: "sqlite" (default) or "memory".
	MetadataStore  string
	DataSourceName string

	// Auth providers
	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURL  string
	OIDCIssuerURL      string
	OIDCClientID       string
	OIDCClientSecret   string
	OIDCRedirectURL    string
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	return &Config{
		JWTSecret: os.Getenv("JWT_SECRET"),

		StorageType:  os.Getenv("STORAGE_TYPE"),
		S3Bucket:     os.Getenv("S3_BUCKET_NAME"),
		S3PublicBase: os.Getenv("S3_PUBLIC_BASE_URL"),

		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:     getEnv("MINIO_BUCKET", "sketchvault"),
		MinioUseSSL:     os.Getenv("MINIO_USE_SSL") == "true",
		MinioPublicBase: getEnv("MINIO_PUBLIC_BASE_URL", "http://localhost:9000/sketchvault"),

		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data"),
		LocalPublicBase:  getEnv("LOCAL_PUBLIC_BASE_URL", "/objects"),

		MetadataStore:  getEnv("METADATA_STORE", "sqlite"),
		DataSourceName: getEnv("DATA_SOURCE_NAME", "sketchvault.db"),

		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
		OIDCIssuerURL:      os.Getenv("OIDC_ISSUER_URL"),
		OIDCClientID:       os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret:   os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:    os.Getenv("OIDC_REDIRECT_URL"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
