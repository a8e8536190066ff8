package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-host/internal/vfile"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

const secret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{"SECRET_KEY": secret}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "HS256", cfg.MACAlgorithm)
	assert.Equal(t, int64(5242880), cfg.MaxFileSize)
	assert.Equal(t, 30, cfg.FileTTLDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{
		"SECRET_KEY":     secret,
		"PORT":           "9000",
		"MAC_ALGORITHM":  "HB2B256",
		"SITE_DOMAIN":    "host.example",
		"SITE_SCHEME":    "https",
		"MAX_FILE_SIZE":  "1024",
		"FILE_TTL_DAYS":  "7",
		"SWEEP_INTERVAL": "1h",
		"LOG_LEVEL":      "debug",
		"LOG_FORMAT":     "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "HB2B256", cfg.MACAlgorithm)
	assert.Equal(t, "host.example", cfg.SiteDomain)
	assert.Equal(t, "https", cfg.SiteScheme)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
	assert.Equal(t, 7, cfg.FileTTLDays)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
secret_key: from-file-secret-0123456789
site_domain: file.example
max_file_size: 2048
sweep_interval: 6h
db_driver: postgres
database_url: postgres://u:p@localhost:5432/social
`), 0o600))

	cfg, err := load(envFrom(map[string]string{
		"CONFIG_FILE": path,
		"SITE_DOMAIN": "env.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-file-secret-0123456789", cfg.SecretKey)
	assert.Equal(t, "env.example", cfg.SiteDomain, "env wins over file")
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
	assert.Equal(t, 6*time.Hour, cfg.SweepInterval)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 8080, cfg.Port, "keys absent from the file keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{"missing secret", map[string]string{}, "SECRET_KEY"},
		{"short secret", map[string]string{"SECRET_KEY": "short"}, "SECRET_KEY"},
		{"bad port", map[string]string{"SECRET_KEY": secret, "PORT": "abc"}, "PORT"},
		{"port out of range", map[string]string{"SECRET_KEY": secret, "PORT": "70000"}, "PORT"},
		{"bad scheme", map[string]string{"SECRET_KEY": secret, "SITE_SCHEME": "ftp"}, "SITE_SCHEME"},
		{"bad size", map[string]string{"SECRET_KEY": secret, "MAX_FILE_SIZE": "0"}, "MAX_FILE_SIZE"},
		{"bad ttl", map[string]string{"SECRET_KEY": secret, "FILE_TTL_DAYS": "-1"}, "FILE_TTL_DAYS"},
		{"bad duration", map[string]string{"SECRET_KEY": secret, "SWEEP_INTERVAL": "daily"}, "SWEEP_INTERVAL"},
		{"bad driver", map[string]string{"SECRET_KEY": secret, "DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"postgres without url", map[string]string{"SECRET_KEY": secret, "DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"bad log level", map[string]string{"SECRET_KEY": secret, "LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"negative cache size", map[string]string{"SECRET_KEY": secret, "CACHE_SIZE": "-1"}, "CACHE_SIZE"},
		{"bad log format", map[string]string{"SECRET_KEY": secret, "LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"missing file", map[string]string{"SECRET_KEY": secret, "CONFIG_FILE": "/nonexistent.yaml"}, "CONFIG_FILE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envFrom(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

// The config check and the signer must agree on the shortest usable secret.
func TestLoad_SecretLengthMatchesSigner(t *testing.T) {
	atLimit := strings.Repeat("k", vfile.MinSecretLength)

	cfg, err := load(envFrom(map[string]string{"SECRET_KEY": atLimit}))
	require.NoError(t, err)
	_, err = vfile.NewSigner(cfg.SecretKey, cfg.MACAlgorithm)
	require.NoError(t, err)

	_, err = load(envFrom(map[string]string{"SECRET_KEY": atLimit[1:]}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")
}

func TestLoad_CacheDisabled(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{"SECRET_KEY": secret, "CACHE_SIZE": "0"}))
	require.NoError(t, err)
	assert.Zero(t, cfg.CacheSize)
}
