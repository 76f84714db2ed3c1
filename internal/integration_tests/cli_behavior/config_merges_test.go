package integration_tests

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/blueetlcore/internal/app"
	"github.com/vk/blueetlcore/internal/cli"
	"github.com/vk/blueetlcore/internal/config"
	"github.com/vk/blueetlcore/internal/hcl"
)

// Test for: the --jobs flag beats the environment, which beats the file
func TestCLI_ConfigMerges_FlagOverEnvironmentOverFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	enginePath := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(enginePath, []byte("jobs: 2\ncache_ttl: 1m\n"), 0o600))
	env := func(values map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := values[k]
			return v, ok
		}
	}

	cases := []struct {
		name    string
		args    []string
		env     map[string]string
		workers int
	}{
		{name: "file", args: []string{"--config", enginePath, "p.hcl"}, workers: 2},
		{name: "environment", args: []string{"--config", enginePath, "p.hcl"}, env: map[string]string{config.EnvJobs: "3"}, workers: 3},
		{name: "flag", args: []string{"--config", enginePath, "--jobs", "5", "p.hcl"}, env: map[string]string{config.EnvJobs: "3"}, workers: 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Act ---
			cfg, _, err := cli.Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			a, err := app.NewApp(io.Discard, io.Discard, cfg, hcl.NewLoader(), env(tc.env))
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.Close() })

			// --- Assert ---
			assert.Equal(t, tc.workers, a.Dispatcher().Workers())
		})
	}
}
