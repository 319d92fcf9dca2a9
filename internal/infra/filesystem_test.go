package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystem_ExpandHome(t *testing.T) {
	fs := NewFileSystemWithHome("/home/player")

	assert.Equal(t, filepath.Join("/home/player", "tools/Textractor.exe"), fs.ExpandHome("~/tools/Textractor.exe"))
	assert.Equal(t, filepath.Join("/home/player", "tools"), fs.ExpandHome(`~\tools`))
	assert.Equal(t, "/home/player", fs.ExpandHome("~"))
	assert.Equal(t, "/opt/tool", fs.ExpandHome("/opt/tool"))
	assert.Equal(t, "~other/x", fs.ExpandHome("~other/x"))
}

func TestFileSystem_Exists(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "a.txt"), nil, 0644))
	fs := NewFileSystemWithHome(home)

	assert.True(t, fs.Exists("~/a.txt"))
	assert.True(t, fs.Exists(filepath.Join(home, "a.txt")))
	assert.False(t, fs.Exists("~/b.txt"))
	assert.False(t, fs.Exists(""))
}
