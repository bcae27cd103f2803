package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://webapi.115.com", cfg.WebAPIBase)
	assert.Equal(t, int64(10*1024*1024), cfg.PartSize)
	assert.Equal(t, "system", cfg.ProxyMode)
	assert.Empty(t, cfg.Cookie)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := `[account]
cookie = UID=1_A; CID=c; SEID=s
user_id = 555

[upload]
part_size = 5242880

[proxy]
mode = basic
host = proxy.corp
port = 3128
no_proxy = localhost,10.0.0.0/8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "UID=1_A; CID=c; SEID=s", cfg.Cookie)
	assert.Equal(t, "555", cfg.UserID)
	assert.Equal(t, int64(5242880), cfg.PartSize)
	assert.Equal(t, "basic", cfg.ProxyMode)
	assert.Equal(t, "proxy.corp", cfg.ProxyHost)
	assert.Equal(t, 3128, cfg.ProxyPort)
	assert.Equal(t, "localhost,10.0.0.0/8", cfg.NoProxy)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PartSize, cfg.PartSize)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("[account\ncookie"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("[account]\ncookie = from-file\n"), 0o600))

	t.Setenv("PAN115_COOKIE", "from-env")
	t.Setenv("PAN115_PART_SIZE", "1048576")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Cookie)
	assert.Equal(t, int64(1048576), cfg.PartSize)
}

func TestEnvOverrideIgnoresBadPartSize(t *testing.T) {
	t.Setenv("PAN115_PART_SIZE", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PartSize, cfg.PartSize)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cookie")

	cfg.Cookie = "UID=1"
	assert.NoError(t, cfg.Validate())
}
