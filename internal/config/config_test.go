// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir is a stand-in for t.Chdir, which needs Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	// Run out of an empty directory so no stray mqsim.yaml interferes.
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Equal(t, "mqsim", cfg.Logger().ServiceName)
	assert.Equal(t, 60*time.Second, cfg.Fetch().Timeout)
	assert.Equal(t, int64(8<<20), cfg.Fetch().MaxBodySize)
	assert.Equal(t, 50*time.Millisecond, cfg.Simulate().DisposalDelay)
	assert.Equal(t, []int{320, 768, 1024, 1280}, cfg.Simulate().Widths)
	assert.False(t, cfg.Fetch().InsecureTLS)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mqsim.yaml")
	content := `
logger:
  level: debug
  format: json
fetch:
  timeout: 5s
  insecure_tls: true
simulate:
  ignore:
    - fonts.googleapis.com
  reparse:
    - /live/
  em_base_px: 18
  widths: [375, 1440]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "json", cfg.Logger().Format)
	assert.Equal(t, 5*time.Second, cfg.Fetch().Timeout)
	assert.True(t, cfg.Fetch().InsecureTLS)
	assert.Equal(t, []string{"fonts.googleapis.com"}, cfg.Simulate().Ignore)
	assert.Equal(t, []string{"/live/"}, cfg.Simulate().Reparse)
	assert.Equal(t, 18.0, cfg.Simulate().EmBasePx)
	assert.Equal(t, []int{375, 1440}, cfg.Simulate().Widths)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mqsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSetters(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.SetFetchInsecureTLS(true)
	cfg.SetFetchUserAgent("custom/2.0")
	cfg.SetSimulateIgnore([]string{"cdn."})
	cfg.SetSimulateReparse([]string{"theme.css"})

	assert.True(t, cfg.Fetch().InsecureTLS)
	assert.Equal(t, "custom/2.0", cfg.Fetch().UserAgent)
	assert.Equal(t, []string{"cdn."}, cfg.Simulate().Ignore)
	assert.Equal(t, []string{"theme.css"}, cfg.Simulate().Reparse)
}
