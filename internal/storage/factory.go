package storage

import (
	"fmt"
	"strings"
)

// Config selects and configures an ObjectStorage backend.
type Config struct {
	Type     StorageType
	LocalDir string
	S3       S3Config
}

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: backend type plus local directory or S3 settings.
// Returns:
//   - ObjectStorage: initialized storage implementation.
//   - error: non-nil if the backend cannot be created.
func NewStorage(cfg *Config) (ObjectStorage, error) {
	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir)
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible, "":
		s3cfg := cfg.S3
		s3cfg.Type = cfg.Type
		if s3cfg.Type == "" {
			s3cfg.Type = detectStorageType(s3cfg.Endpoint)
		}
		return NewS3Storage(&s3cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
