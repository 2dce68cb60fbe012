package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Ingest.JobTimeout)
	assert.Equal(t, "X-User-ID", cfg.Auth.UserHeader)
	assert.True(t, cfg.Ingest.RecoverOnStart)
}

func TestLoadFileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
ingest:
  workers: 2
  queue_size: 8
  job_timeout: 30s
chunking:
  size: 500
  overlap: 50
storage:
  type: s3
  bucket: docs
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, 8, cfg.Ingest.QueueSize)
	assert.Equal(t, 30*time.Second, cfg.Ingest.JobTimeout)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "docs", cfg.Storage.Bucket)
}

func TestLoadSecretFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero workers", "ingest:\n  workers: 0\n"},
		{"overlap exceeds size", "chunking:\n  size: 100\n  overlap: 100\n"},
		{"unknown storage", "storage:\n  type: ftp\n"},
		{"unknown driver", "database:\n  driver: mysql\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./x.db"}
	assert.Equal(t, "./x.db", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", pg.DSN())
}
