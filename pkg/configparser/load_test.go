package configparser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Relay struct {
		Port    string        `env:"GT_TEST_RELAY_PORT" default:"8080"`
		Timeout time.Duration `env:"GT_TEST_RELAY_TIMEOUT" default:"5s"`
	}
	Client struct {
		MaxPath int     `env:"GT_TEST_CLIENT_MAXPATH" default:"0"`
		Ratio   float64 `env:"GT_TEST_CLIENT_RATIO"`
		Enabled bool    `env:"GT_TEST_CLIENT_ENABLED" default:"false"`
	}
}

func writeYaml(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAndParseYaml_FileValues(t *testing.T) {
	path := writeYaml(t, `
gt_test:
  relay:
    port: 9090
    timeout: 2s
  client:
    maxpath: 100
    ratio: 0.5
    enabled: true
`)
	for _, k := range []string{"GT_TEST_RELAY_PORT", "GT_TEST_RELAY_TIMEOUT", "GT_TEST_CLIENT_MAXPATH", "GT_TEST_CLIENT_RATIO", "GT_TEST_CLIENT_ENABLED"} {
		t.Setenv(k, "")
	}

	var cfg testConfig
	require.NoError(t, LoadAndParseYaml(path, &cfg))

	require.Equal(t, "9090", cfg.Relay.Port)
	require.Equal(t, 2*time.Second, cfg.Relay.Timeout)
	require.Equal(t, 100, cfg.Client.MaxPath)
	require.InDelta(t, 0.5, cfg.Client.Ratio, 1e-9)
	require.True(t, cfg.Client.Enabled)
}

func TestLoadAndParseYaml_EnvWins(t *testing.T) {
	path := writeYaml(t, `
gt_test:
  relay:
    port: 9090
`)
	t.Setenv("GT_TEST_RELAY_PORT", "7000")

	var cfg testConfig
	require.NoError(t, LoadAndParseYaml(path, &cfg))
	require.Equal(t, "7000", cfg.Relay.Port)
}

func TestLoadAndParseYaml_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GT_TEST_RELAY_PORT", "")
	t.Setenv("GT_TEST_RELAY_TIMEOUT", "")

	var cfg testConfig
	require.NoError(t, LoadAndParseYaml(filepath.Join(t.TempDir(), "absent.yaml"), &cfg))
	require.Equal(t, "8080", cfg.Relay.Port)
	require.Equal(t, 5*time.Second, cfg.Relay.Timeout)
}

func TestExpand(t *testing.T) {
	t.Setenv("GT_TEST_HOST", "")
	require.Equal(t, "localhost", expand("${GT_TEST_HOST:-localhost}"))

	t.Setenv("GT_TEST_HOST", "rabbit")
	require.Equal(t, "rabbit", expand("${GT_TEST_HOST:-localhost}"))
	require.Equal(t, "plain", expand("plain"))
}

func TestParseEnv_RejectsNonPointer(t *testing.T) {
	require.ErrorIs(t, ParseEnv(testConfig{}), ErrNotStructPointer)
}
