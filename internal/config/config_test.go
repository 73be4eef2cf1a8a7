package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	f := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(f, []byte(body), 0o644))
	return f
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, "PROXY:\n  http: http://127.0.0.1:8080\n"))
	require.NoError(t, err)
	require.Equal(t, "data/cache.db", c.CacheDB)
	require.Equal(t, "門別", c.Course)
	require.Equal(t, "jbis", c.Source.Preset)
	require.Equal(t, 25*time.Second, c.Source.Timeout)
	require.Equal(t, 2, c.Source.Retry)
	require.Equal(t, "pretty", c.LogFormat)
	require.Equal(t, "http://127.0.0.1:8080", c.Proxy.HTTP)
}

func TestLoad_Values(t *testing.T) {
	c, err := Load(writeConfig(t, `CACHE_DB: /tmp/k.db
COURSE: 大井
SOURCE:
  calendar_url: "https://ex/cal/{year}/{month}"
  preset: other
  timeout: 5s
  retry_delay: 100ms
  breaker_failures: 3
LOG_FORMAT: json
`))
	require.NoError(t, err)
	require.Equal(t, "/tmp/k.db", c.CacheDB)
	require.Equal(t, "大井", c.Course)
	require.Equal(t, "https://ex/cal/{year}/{month}", c.Source.CalendarURL)
	require.Equal(t, 5*time.Second, c.Source.Timeout)
	require.Equal(t, 100*time.Millisecond, c.Source.RetryDelay)
	require.Equal(t, 3, c.Source.BreakerFailures)
	require.Equal(t, "json", c.LogFormat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvCacheDB, "/env/cache.db")
	t.Setenv(EnvCourse, "川崎")
	t.Setenv(EnvLogLevel, "debug")
	c, err := Load(writeConfig(t, "CACHE_DB: /yaml.db\nCOURSE: 大井\n"))
	require.NoError(t, err)
	require.Equal(t, "/env/cache.db", c.CacheDB)
	require.Equal(t, "川崎", c.Course)
	require.Equal(t, "debug", c.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"negative retry":  "SOURCE:\n  retry: -1\n",
		"no placeholders": "SOURCE:\n  calendar_url: https://ex/cal\n",
		"log format":      "LOG_FORMAT: xml\n",
	} {
		_, err := Load(writeConfig(t, body))
		require.Error(t, err, name)
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefault(t *testing.T) {
	t.Setenv(EnvCourse, "園田")
	c, err := Default()
	require.NoError(t, err)
	require.Equal(t, "園田", c.Course)
	require.Equal(t, "data/cache.db", c.CacheDB)
}
