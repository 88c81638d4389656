package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realPath(t *testing.T, p string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(p)
	require.NoError(t, err)
	return r
}

func TestGetCfgPath(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	assert.Panics(t, func() { GetCfgPath("") })
	assert.Equal(t, "/tmp/test.yaml", GetCfgPath("/tmp/test.yaml"))

	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	tmp := t.TempDir()
	require.NoError(t, os.Chdir(tmp))

	const name = "apiserver.yaml"

	// ./configs is found when the working directory has no file
	require.NoError(t, os.MkdirAll("configs", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("configs", name), []byte("x"), 0o644))
	assert.Equal(t, realPath(t, filepath.Join(tmp, "configs", name)), realPath(t, GetCfgPath(name)))

	// the working directory wins over ./configs
	require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
	assert.Equal(t, realPath(t, filepath.Join(tmp, name)), realPath(t, GetCfgPath(name)))

	// the env directory wins over both
	envDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(envDir, name), []byte("x"), 0o644))
	t.Setenv(ConfigDirEnv, envDir)
	assert.Equal(t, realPath(t, filepath.Join(envDir, name)), realPath(t, GetCfgPath(name)))

	// a directory with the same name is skipped
	t.Setenv(ConfigDirEnv, "")
	require.NoError(t, os.Remove(name))
	require.NoError(t, os.Remove(filepath.Join("configs", name)))
	require.NoError(t, os.Mkdir(name, 0o755))
	assert.Equal(t, filepath.Join(SystemConfigDir, name), GetCfgPath(name))
}
