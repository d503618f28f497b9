package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/registry"
)

func TestBuiltinLibrary(t *testing.T) {
	r := registry.New("", nil)
	require.NoError(t, r.Load())

	assert.Contains(t, r.Types(), "hero")
	assert.Contains(t, r.Types(), "biography")
	assert.True(t, r.Has("topics"))
	assert.False(t, r.Has("carousel"))

	tpl, ok := r.Template("hero")
	assert.True(t, ok)
	assert.Equal(t, "hero", tpl)
	_, ok = r.Template("carousel")
	assert.False(t, ok)

	d := r.Defaults("hero")
	assert.Equal(t, "center", d["align"])
	assert.Nil(t, r.Defaults("carousel"))

	s, ok := r.Schema("podcast-player")
	require.True(t, ok)
	require.NotNil(t, s.Fields["episodes"].Max)
	assert.Equal(t, 20, *s.Fields["episodes"].Max)
	assert.Equal(t, "builtin", s.Source)
}

func TestDefaultsAreCopies(t *testing.T) {
	r := registry.New("", nil)
	require.NoError(t, r.Load())
	d := r.Defaults("hero")
	d["align"] = "left"
	assert.Equal(t, "center", r.Defaults("hero")["align"])
}

func TestDirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.toml"), []byte(`
[[component]]
type = "hero"
template = "hero-v2"
  [component.defaults]
  align = "left"

[[component]]
type = "testimonial"
  [component.defaults]
  quote = ""
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.json"),
		[]byte(`[{"type":"press","template":"press-grid","defaults":{"outlets":[]}}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte(`[[component`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o644))

	r := registry.New(dir, nil)
	require.NoError(t, r.Load())

	tpl, _ := r.Template("hero")
	assert.Equal(t, "hero-v2", tpl)
	assert.Equal(t, "left", r.Defaults("hero")["align"])

	tpl, _ = r.Template("testimonial")
	assert.Equal(t, "testimonial", tpl, "template defaults to the type")
	tpl, _ = r.Template("press")
	assert.Equal(t, "press-grid", tpl)
	assert.True(t, r.Has("biography"), "builtin types survive")
}

func TestMissingDirectoryServesBuiltins(t *testing.T) {
	r := registry.New(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, r.Load())
	assert.True(t, r.Has("hero"))
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	r := registry.New(dir, nil)
	require.NoError(t, r.Load())
	defer r.Close()

	reloaded := make(chan []string, 4)
	require.NoError(t, r.Watch(20*time.Millisecond, func(types []string) { reloaded <- types }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.toml"), []byte(`
[[component]]
type = "awards"
`), 0o644))

	select {
	case types := <-reloaded:
		assert.Contains(t, types, "awards")
	case <-time.After(5 * time.Second):
		t.Fatal("registry was not reloaded")
	}
	assert.True(t, r.Has("awards"))
}

func TestWatchWithoutDirectory(t *testing.T) {
	r := registry.New("", nil)
	assert.Error(t, r.Watch(0, nil))
}
