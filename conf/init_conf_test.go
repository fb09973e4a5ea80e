package conf

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readYaml(t *testing.T, content string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(content)))
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load(readYaml(t, "port: \"\"\n"))

	assert.Equal(t, "7290", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, 3600, cfg.Storage.PresignExpiry)
	assert.Equal(t, "./data/files", cfg.Storage.Local.BasePath)
	assert.Equal(t, "http://localhost:7290", cfg.Storage.Local.BaseUrl)
	assert.Equal(t, 86400, cfg.Storage.Local.SessionTtl)
	assert.Equal(t, 600, cfg.Storage.Local.SweepInterval)
	assert.Equal(t, 300, cfg.Redis.CacheTTL)
	assert.Equal(t, "ffprobe", cfg.Probe.FfprobePath)
	assert.Equal(t, 30, cfg.Probe.Timeout)
	assert.Equal(t, 2, cfg.Probe.Workers)
	assert.Equal(t, 64, cfg.Probe.QueueSize)
	assert.Equal(t, "localhost:7290", cfg.SwaggerBaseUrl)
}

func TestLoadStorageSection(t *testing.T) {
	cfg := Load(readYaml(t, `
storage:
  type: s3
  presign_expiry: 900
  public_base_url: "https://cdn.example.com/"
  s3:
    region: auto
    endpoint: https://r2.example.com
    access_key: ak
    secret_key: sk
    bucket: public
    force_path_style: true
`))

	assert.Equal(t, 900, cfg.Storage.PresignExpiry)
	assert.Equal(t, "https://cdn.example.com", cfg.Storage.PublicBaseUrl)
	assert.Equal(t, "auto", cfg.Storage.S3.Region)
	assert.Equal(t, "public", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.ForcePathStyle)
}

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, ProdEnvironmentEnum, ParseEnvironment("prod"))
	assert.Equal(t, LocalEnvironmentEnum, ParseEnvironment("unknown"))

	SystemEnvironmentEnum = DevEnvironmentEnum
	defer func() { SystemEnvironmentEnum = LocalEnvironmentEnum }()
	assert.Equal(t, "./conf/dev.yaml", GetYaml())
}
