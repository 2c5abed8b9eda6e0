package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/storage"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadFile(t *testing.T) {
	dataDir := t.TempDir()
	conf, err := Load(
		writeConfig(
			t, `
server:
  port: 9000
storage:
  driver: sqlite
  data_dir: `+dataDir+`
signing:
  key_file: `+filepath.Join(dataDir, "key.pem")+`
export:
  web_url: https://sat.example.com/web
  max_extracted_size: 1048576
jobs:
  workers: 3
`,
		),
	)
	require.NoError(t, err)
	assert.Equal(t, 9000, conf.Server.Port)
	assert.Equal(t, storage.DriverSQLite, conf.Storage.Driver)
	assert.Equal(t, 3, conf.Jobs.Workers)
	assert.Equal(t, defaultJobsConf.QueueSize, conf.Jobs.QueueSize)
	assert.Equal(t, FileStoreBadger, conf.FileStore.Backend)
	assert.Equal(t, 24*time.Hour, conf.FileStore.TTL.Duration())
	assert.Equal(t, conf, Get())

	sc := StorageConfig(conf)
	assert.Equal(t, dataDir, sc.DataDir)
	assert.Equal(t, defaultAPIConf.Admin.Argon2idParams, sc.UsersHash)
	mc := ManifestConfig(conf)
	assert.Equal(t, "https://sat.example.com/web", mc.WebURL)
	assert.Equal(t, defaultExportConf.APIURL, mc.APIURL)
	assert.Equal(t, int64(1048576), mc.MaxExtractedSize)
	assert.Equal(t, filepath.Join(dataDir, "key.pem"), PKIConfig(conf).KeyFile)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CANDLEPIN_SERVER_PORT", "9100")
	t.Setenv("CANDLEPIN_STORAGE_DATA_DIR", t.TempDir())
	t.Setenv("CANDLEPIN_JOBS_WORKERS", "4")
	t.Setenv("CANDLEPIN_FILE_STORE_BACKEND", FileStoreRedis)
	t.Setenv("CANDLEPIN_FILE_STORE_REDIS_ADDR", "localhost:6379")
	t.Setenv("CANDLEPIN_LOGGING_INTERNAL_LEVEL", "debug")
	t.Setenv("CANDLEPIN_EXPORT_MAX_EXTRACTED_SIZE", "2048")

	conf, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 9100, conf.Server.Port)
	assert.Equal(t, 4, conf.Jobs.Workers)
	assert.Equal(t, FileStoreRedis, conf.FileStore.Backend)
	assert.Equal(t, "localhost:6379", conf.FileStore.RedisAddr)
	assert.Equal(t, "debug", LoggerConfig(conf).Level)
	assert.Equal(t, int64(2048), ManifestConfig(conf).MaxExtractedSize)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing data dir",
			content: "storage:\n  data_dir: /does/not/exist\n",
		},
		{
			name:    "unknown file store",
			content: "file_store:\n  backend: s3\n",
		},
		{
			name:    "redis without address",
			content: "file_store:\n  backend: redis\n",
		},
		{
			name:    "no workers",
			content: "jobs:\n  workers: 0\n",
		},
		{
			name:    "no extraction budget",
			content: "export:\n  max_extracted_size: 0\n",
		},
		{
			name:    "short rsa key",
			content: "signing:\n  rsa_key_len: 1024\n",
		},
		{
			name:    "missing log dir",
			content: "logging:\n  access:\n    dir: /does/not/exist\n",
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				_, err := Load(writeConfig(t, test.content))
				assert.Error(t, err)
			},
		)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
