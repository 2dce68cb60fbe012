package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/timmy/doclens/internal/config"
	"github.com/timmy/doclens/internal/storage"
)

func TestStorageConfig(t *testing.T) {
	got := StorageConfig(&config.StorageConfig{
		Type:      "r2",
		LocalDir:  "/srv/uploads",
		Endpoint:  "https://acct.r2.cloudflarestorage.com",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "docs",
		Region:    "auto",
	})

	assert.Equal(t, storage.StorageTypeR2, got.Type)
	assert.Equal(t, "/srv/uploads", got.LocalDir)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", got.S3.Endpoint)
	assert.Equal(t, "docs", got.S3.Bucket)
	assert.Equal(t, "sk", got.S3.SecretKey)
}

func TestStorageConfigBuildsLocalBackend(t *testing.T) {
	dir := t.TempDir()
	objectStorage, err := storage.NewStorage(StorageConfig(&config.StorageConfig{Type: "local", LocalDir: dir}))
	assert.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, objectStorage)
}

func TestLoggerConfig(t *testing.T) {
	got := LoggerConfig(&config.LogConfig{
		Level:      "debug",
		Format:     "text",
		File:       "/var/log/doclens.log",
		MaxSizeMB:  10,
		MaxBackups: 2,
	})

	assert.Equal(t, "debug", got.Level)
	assert.Equal(t, "text", got.Format)
	assert.Equal(t, "doclens", got.ServiceName)
	assert.Equal(t, "/var/log/doclens.log", got.File)
	assert.Equal(t, 10, got.MaxSizeMB)
	assert.Equal(t, 2, got.MaxBackups)
}

func TestStaleAfterOutlivesJobTimeout(t *testing.T) {
	assert.Equal(t, 11*time.Minute, StaleAfter(10*time.Minute))
	assert.Greater(t, StaleAfter(time.Second), time.Second)
}
