package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ParseConfigPath extended tests ---

func TestParseConfigPath_Extended(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "server", []string{"server"}, false},
		{"two segments", "server.port", []string{"server", "port"}, false},
		{"three segments", "hooks.serverStart.command", []string{"hooks", "serverStart", "command"}, false},
		{"empty", "", nil, true},
		{"empty segment", "server..port", nil, true},
		{"leading dot", ".server", nil, true},
		{"trailing dot", "server.", nil, true},
		{"blocked __proto__", "foo.__proto__.bar", nil, true},
		{"blocked prototype", "prototype.x", nil, true},
		{"blocked constructor", "constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// --- GetValueAtPath extended tests ---

func TestGetValueAtPath_Extended(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"port": 18790,
		},
		"http": map[string]any{
			"retry": map[string]any{
				"max": 2,
			},
		},
		"simple": "value",
	}

	tests := []struct {
		name string
		path []string
		want any
		ok   bool
	}{
		{"nested value", []string{"server", "port"}, 18790, true},
		{"deeply nested", []string{"http", "retry", "max"}, 2, true},
		{"top level", []string{"simple"}, "value", true},
		{"missing key", []string{"nonexistent"}, nil, false},
		{"missing nested", []string{"server", "nonexistent"}, nil, false},
		{"non-map intermediate", []string{"simple", "sub"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, ok := GetValueAtPath(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, val)
			}
		})
	}
}

// --- SetValueAtPath extended tests ---

func TestSetValueAtPath_CreatesIntermediates(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"a", "b", "c"}, "deep")
	val, ok := GetValueAtPath(root, []string{"a", "b", "c"})
	assert.True(t, ok)
	assert.Equal(t, "deep", val)
}

func TestSetValueAtPath_OverwritesNonMap(t *testing.T) {
	root := map[string]any{
		"server": "string-not-map",
	}

	SetValueAtPath(root, []string{"server", "port"}, 8080)
	val, ok := GetValueAtPath(root, []string{"server", "port"})
	assert.True(t, ok)
	assert.Equal(t, 8080, val)
}

func TestSetValueAtPath_SingleKey(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"version"}, "1.0.0")
	assert.Equal(t, "1.0.0", root["version"])
}

// --- UnsetValueAtPath extended tests ---

func TestUnsetValueAtPath_PreserveSiblings(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"port": 18790,
			"bind": "loopback",
		},
	}

	ok := UnsetValueAtPath(root, []string{"server", "port"})
	assert.True(t, ok)

	_, found := GetValueAtPath(root, []string{"server", "port"})
	assert.False(t, found)

	val, found := GetValueAtPath(root, []string{"server", "bind"})
	assert.True(t, found)
	assert.Equal(t, "loopback", val)
}

func TestUnsetValueAtPath_TopLevel(t *testing.T) {
	root := map[string]any{"storage": map[string]any{"type": "file"}}
	assert.True(t, UnsetValueAtPath(root, []string{"storage"}))
	assert.Empty(t, root)
}

func TestUnsetValueAtPath_NotFound(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"port": 18790,
		},
	}

	assert.False(t, UnsetValueAtPath(root, []string{"server", "nonexistent"}))
	assert.False(t, UnsetValueAtPath(map[string]any{}, []string{"a", "b", "c"}))
	assert.False(t, UnsetValueAtPath(map[string]any{"server": "string"}, []string{"server", "port"}))
}

// --- ResolvePaths tests ---

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("WITNESS_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".witness"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".witness", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".witness", "store"), paths.Store)
	assert.Equal(t, filepath.Join(home, ".witness", "logs"), paths.Logs)
	assert.Equal(t, filepath.Join(home, ".witness", "data"), paths.Data)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	t.Setenv("WITNESS_HOME", "/tmp/testwitness")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/testwitness", paths.Base)
	assert.Equal(t, "/tmp/testwitness/config.yaml", paths.Config)
	assert.Equal(t, "/tmp/testwitness/store", paths.Store)
	assert.Equal(t, "/tmp/testwitness/logs", paths.Logs)
	assert.Equal(t, "/tmp/testwitness/data", paths.Data)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("WITNESS_HOME", t.TempDir())

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs()) // second call should succeed

	for _, d := range []string{paths.Base, paths.Store, paths.Logs, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestBlockedKeys(t *testing.T) {
	assert.True(t, blockedKeys["__proto__"])
	assert.True(t, blockedKeys["prototype"])
	assert.True(t, blockedKeys["constructor"])
	assert.False(t, blockedKeys["server"])
}
