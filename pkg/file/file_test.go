package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_IsFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	fs := NewFileService()

	exists, err := fs.IsFileExists(path)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = fs.IsFileExists(filepath.Join(dir, "missing.txt"))
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestFileService_ReadYamlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: twin\nport: 8080\n"), 0600))

	var out struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	}
	err := NewFileService().ReadYamlFile(path, &out)

	require.NoError(t, err)
	assert.Equal(t, "twin", out.Name)
	assert.Equal(t, 8080, out.Port)
}

func TestFileService_ReadYamlFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	out := struct {
		Name string `yaml:"name"`
	}{Name: "default"}

	assert.NoError(t, NewFileService().ReadYamlFile(path, &out))
	assert.Equal(t, "default", out.Name)
}

func TestFileService_ReadFileRaw_Missing(t *testing.T) {
	_, err := NewFileService().ReadFileRaw(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
