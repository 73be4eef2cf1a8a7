package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("201801", "201803")
	require.NoError(t, err)
	require.Equal(t, 201801, start)
	require.Equal(t, 201803, end)

	_, _, err = parseRange("201813", "201901")
	require.Error(t, err)
	_, _, err = parseRange("201801", "x")
	require.Error(t, err)

	start, end, err = parseRange("201805", "201801")
	require.NoError(t, err)
	require.Greater(t, start, end)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	require.True(t, strings.HasPrefix(out.String(), "keiba dev"))
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEIBA_LOG_LEVEL", "off")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"stats", "-d", filepath.Join(dir, "cache.db"), "--json", ""})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "calendar")
	require.Contains(t, out.String(), "keys=0 rows=0")

	out.Reset()
	jsonPath := filepath.Join(dir, "stats.json")
	rootCmd.SetArgs([]string{"stats", "-d", filepath.Join(dir, "cache.db"), "--json", jsonPath})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), jsonPath)
}

func TestCollectCommand_Args(t *testing.T) {
	rootCmd.SetArgs([]string{"collect", "201801"})
	require.Error(t, rootCmd.Execute())
}
