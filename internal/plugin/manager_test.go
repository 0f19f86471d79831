package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeManifest creates dir/name/plugin.json. A string manifest is written
// verbatim.
func writeManifest(t *testing.T, dir, name string, manifest any) string {
	t.Helper()

	pluginDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))

	var data []byte
	if s, ok := manifest.(string); ok {
		data = []byte(s)
	} else {
		var err error
		data, err = json.Marshal(manifest)
		require.NoError(t, err)
	}

	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0o644))
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, "ambient-audio", Manifest{
		Name:        "ambient-audio",
		Version:     "1.0.0",
		Description: "Background music",
		Executable:  "ambient-audio",
		Actions:     []string{"start", "stop"},
	})

	manager := NewManager(tmpDir, nil)
	require.NoError(t, manager.Discover())

	plugins := manager.List()
	require.Len(t, plugins, 1)

	plugin := plugins[0]
	assert.Equal(t, "ambient-audio", plugin.Manifest.Name)
	assert.Equal(t, []string{"start", "stop"}, plugin.Manifest.Actions)
	assert.Equal(t, pluginDir, plugin.Path)
	assert.Equal(t, filepath.Join(pluginDir, "ambient-audio"), plugin.Executable)
}

func TestManager_Discover_SkipsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "good", Manifest{Name: "good", Executable: "good"})
	writeManifest(t, tmpDir, "bad-json", "not valid json")
	writeManifest(t, tmpDir, "no-name", Manifest{Executable: "x"})
	writeManifest(t, tmpDir, "no-exe", Manifest{Name: "no-exe"})
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "stray-file"), nil, 0o644))

	manager := NewManager(tmpDir, nil)
	require.NoError(t, manager.Discover())

	plugins := manager.List()
	require.Len(t, plugins, 1, "only the valid plugin survives")
	assert.Equal(t, "good", plugins[0].Manifest.Name)
}

func TestManager_Discover_Rescan(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "a", Manifest{Name: "a", Executable: "a"})

	manager := NewManager(tmpDir, nil)
	require.NoError(t, manager.Discover())
	require.NoError(t, os.RemoveAll(filepath.Join(tmpDir, "a")))
	writeManifest(t, tmpDir, "b", Manifest{Name: "b", Executable: "b"})
	require.NoError(t, manager.Discover())

	_, err := manager.Get("a")
	assert.ErrorIs(t, err, ErrPluginNotFound, "removed plugin is forgotten")
	_, err = manager.Get("b")
	assert.NoError(t, err)
}

func TestManager_Discover_EmptyAndMissingDir(t *testing.T) {
	for _, dir := range []string{t.TempDir(), "/path/that/does/not/exist"} {
		manager := NewManager(dir, nil)
		require.NoError(t, manager.Discover(), dir)
		assert.Empty(t, manager.List(), dir)
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := NewManager(t.TempDir(), nil)

	_, err := manager.Get("nonexistent-plugin")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestManager_PluginDir(t *testing.T) {
	manager := NewManager("/path/to/plugins", nil)
	assert.Equal(t, "/path/to/plugins", manager.PluginDir())
}
