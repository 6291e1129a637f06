package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x6d61/version-master/internal/config"
)

func TestLoadRepos_Missing(t *testing.T) {
	repos, err := config.LoadRepos(filepath.Join(t.TempDir(), "repos.json"))
	require.NoError(t, err)
	assert.Nil(t, repos)
}

func TestSaveRepos_RoundTripCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "repos.json")
	want := []string{"/a/one", "/b/two"}

	require.NoError(t, config.SaveRepos(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"repos\": [\n    \"/a/one\",\n    \"/b/two\"\n  ]\n}\n", string(data))

	got, err := config.LoadRepos(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveRepos_EmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	require.NoError(t, config.SaveRepos(path, nil))

	got, err := config.LoadRepos(path)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadRepos_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := config.LoadRepos(path)
	assert.Error(t, err)
}
