package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gocrud/mvc/core"
	"github.com/gocrud/mvc/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueStoreConcurrentLoad(t *testing.T) {
	store := NewValueStore()
	assert.Equal(t, uint64(1), store.Version())
	assert.Empty(t, store.Load())
	store.Store(map[string]any{"key": "value"})
	assert.Equal(t, uint64(2), store.Version())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "value", store.Load()["key"])
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
	assert.Equal(t, []string{"LocalePicker", "Locales"}, cache.GetPathSegments("LocalePicker.Locales"))
	assert.Empty(t, cache.GetPathSegments(""))
}

func TestLayeredSources(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
web:
  port: 8080
LocalePicker:
  Locales: "en_US, fr"
`), 0o644))
	jsonPath := filepath.Join(dir, "override.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"web": {"port": 9090, "mode": "release"}}`), 0o644))

	cfg, err := NewConfigurationBuilder().
		AddYamlFile(yamlPath).
		AddJsonFile(jsonPath).
		AddJsonFile(filepath.Join(dir, "missing.json"), true).
		AddInMemory(map[string]any{"web": map[string]any{"mode": "debug"}}).
		Build()
	require.NoError(t, err)

	port, err := cfg.GetInt("web:port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)
	assert.Equal(t, "debug", cfg.Get("web.mode"))
	assert.Equal(t, "en_US, fr", cfg.Get("LocalePicker.Locales"))

	v, ok := cfg.Lookup("LocalePicker.Locales")
	assert.True(t, ok)
	assert.Equal(t, "en_US, fr", v)

	_, ok = cfg.Lookup("web")
	assert.False(t, ok, "sections are not leaf values")
	_, ok = cfg.Lookup("web.host")
	assert.False(t, ok)

	assert.Equal(t, "localhost", cfg.GetWithDefault("web.host", "localhost"))
	assert.Equal(t, []string{"mode", "port"}, cfg.GetSection("web").Keys())
}

func TestMissingRequiredFile(t *testing.T) {
	_, err := NewConfigurationBuilder().AddYamlFile(filepath.Join(t.TempDir(), "nope.yaml")).Build()
	assert.Error(t, err)
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("CFGTEST_WEB_PORT", "7070")
	t.Setenv("CFGTEST_WEB_DEBUG", "true")

	cfg, err := NewConfigurationBuilder().AddEnvironmentVariables("CFGTEST_").Build()
	require.NoError(t, err)

	port, err := cfg.GetInt("web:port")
	require.NoError(t, err)
	assert.Equal(t, 7070, port)

	debug, err := cfg.GetBool("web.debug")
	require.NoError(t, err)
	assert.True(t, debug)
}

func TestSectionBinding(t *testing.T) {
	type Web struct {
		Port int    `json:"port"`
		Mode string `json:"mode"`
	}

	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"web": map[string]any{"port": 8081}}).
		Build()
	require.NoError(t, err)

	web, err := Section[Web](cfg, "web")
	require.NoError(t, err)
	assert.Equal(t, 8081, web.Port)

	_, err = Section[Web](cfg, "absent")
	assert.Error(t, err)

	def := Web{Port: 1, Mode: "test"}
	got, err := SectionOrDefault(cfg, "absent", def)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	got, err = SectionOrDefault(cfg, "web", def)
	require.NoError(t, err)
	assert.Equal(t, Web{Port: 8081, Mode: "test"}, got)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	data := map[string]any{"name": "first"}
	cfg, err := NewConfigurationBuilder().AddInMemory(data).Build()
	require.NoError(t, err)

	snapshot := cfg.GetAll()
	data["name"] = "second"
	assert.Equal(t, "first", cfg.Get("name"))

	require.NoError(t, cfg.Reload())
	assert.Equal(t, "second", cfg.Get("name"))
	assert.Equal(t, "first", snapshot["name"])
}

func TestUseRegistersConfiguration(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(Use(func(b *ConfigurationBuilder) {
		b.AddInMemory(map[string]any{"app": map[string]any{"name": "mvc"}})
	})))
	require.NoError(t, rt.Container.Build())

	cfg, err := di.Resolve[Configuration](rt.Container)
	require.NoError(t, err)
	assert.Equal(t, "mvc", cfg.Get("app.name"))
	assert.Same(t, cfg, FromRuntime(rt))
}

func BenchmarkConfigGet(b *testing.B) {
	cfg, _ := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
	}).Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg.Get("server:host")
	}
}
