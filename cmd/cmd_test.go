package cmd

import (
	"bytes"
	"testing"

	"github.com/brogergvhs/sushidl/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func isolateConfig(t *testing.T) config.Store {
	t.Helper()

	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"SUSHIDL_COOKIE_FR", "SUSHIDL_COOKIE_NET", "SUSHIDL_USER_AGENT", "SUSHIDL_OUTPUT"} {
		t.Setenv(k, "")
	}
	return config.DefaultStore()
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sushidl dev (go")
}

func TestConfigCommand_ShowsCookieFreshness(t *testing.T) {
	store := isolateConfig(t)
	_, err := store.InitDefault()
	require.NoError(t, err)

	_, err = run(t, "config", "cookie", "fr", "abc123")
	require.NoError(t, err)

	out, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile: "+store.PathFor(config.DefaultLabel))
	assert.Contains(t, out, "sushiscan.fr   fresh")
	assert.Contains(t, out, "sushiscan.net  unknown")
}

func TestConfigRenameAndSwitch(t *testing.T) {
	store := isolateConfig(t)
	_, err := store.InitDefault()
	require.NoError(t, err)
	_, err = store.Create("work")
	require.NoError(t, err)

	out, err := run(t, "config", "rename", "work", "weekend")
	require.NoError(t, err)
	assert.Equal(t, "Profile \"work\" is now \"weekend\"\n", out)

	out, err = run(t, "config", "switch", "weekend")
	require.NoError(t, err)
	assert.Equal(t, "Active profile: weekend\n", out)

	label, err := store.CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, "weekend", label)

	_, err = run(t, "config", "rename", "missing", "x")
	assert.Error(t, err)
}
