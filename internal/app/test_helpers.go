package app

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/blueetlcore/internal/config"
	"github.com/vk/blueetlcore/internal/registry"
	"github.com/vk/blueetlcore/internal/testutil"
)

// SetupAppTest creates an App for system tests. Its report goes to the first
// returned buffer and its debug logs to the second. The environment is
// empty unless env is given.
func SetupAppTest(t *testing.T, cfg Config, loader config.Loader, env map[string]string, modules ...registry.Module) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	outBuffer := &testutil.SafeBuffer{}
	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	appConfig, err := NewConfig(cfg)
	require.NoError(t, err)

	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	testApp, err := NewApp(outBuffer, logBuffer, appConfig, loader, lookup, modules...)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, testApp.Close())
		if os.Getenv("BLUEETL_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, outBuffer, logBuffer
}
