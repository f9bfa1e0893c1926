package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type sampleSection struct {
	Endpoint string        `mapstructure:"endpoint"`
	Interval time.Duration `mapstructure:"interval"`
	Tags     []string      `mapstructure:"tags"`
}

func (s *sampleSection) ApplyDefaults() {
	if s.Endpoint == "" {
		s.Endpoint = "localhost:8500"
	}
}

func (s *sampleSection) Validate() error {
	if s.Interval < time.Second {
		return errors.New("interval must be at least 1s")
	}
	return nil
}

func TestLoaderBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
consul:
  endpoint: "127.0.0.1:8500"
  interval: 5s
  tags: ["a", "${TAG_B:-b}"]
`)
	writeFile(t, dir, "test.yaml", `
consul:
  interval: 10s
`)
	t.Setenv("APP_ENV", "test")
	t.Setenv("YOGANTEST_CONSUL_ENDPOINT", "10.0.0.1:8500")

	loader, err := NewLoaderBuilder().
		WithConfigPath(dir).
		WithEnvPrefix("YOGANTEST").
		WithSubstitutor(NewSubstitutor(mapLookup(nil))).
		Build()
	require.NoError(t, err)

	assert.Len(t, loader.GetLoadedFiles(), 2)

	var section sampleSection
	require.NoError(t, Bind(loader, "consul", &section))
	assert.Equal(t, "10.0.0.1:8500", section.Endpoint, "环境变量覆盖文件")
	assert.Equal(t, 10*time.Second, section.Interval, "环境文件覆盖基础文件")
	assert.Equal(t, []string{"a", "b"}, section.Tags)
}

func TestLoader_SubstitutionChain(t *testing.T) {
	loader := NewLoader()
	loader.AddSource(NewMapSource("defaults", 1, map[string]interface{}{
		"app": map[string]interface{}{"name": "${NAME}", "greeting": "hello ${WHO}"},
	}))
	loader.AddSubstitutor(NewSubstitutor(mapLookup(map[string]string{"NAME": "hello-world"})))
	loader.AddSubstitutor(NewSubstitutor(mapLookup(map[string]string{"WHO": "kv"})))

	require.NoError(t, loader.Load())
	assert.Equal(t, "hello-world", loader.GetString("app.name"))
	assert.Equal(t, "hello kv", loader.GetString("app.greeting"))
}

func TestLoader_StrictSubstitutionFails(t *testing.T) {
	loader := NewLoader()
	loader.AddSource(NewMapSource("defaults", 1, map[string]interface{}{"a": "${UNDEFINED_X}"}))
	loader.AddSubstitutor(NewSubstitutor(mapLookup(nil), WithStrict(true)))

	err := loader.Load()
	assert.ErrorIs(t, err, ErrUndefinedVariable)
}

func TestBind_MissingSectionUsesDefaults(t *testing.T) {
	loader := NewLoader()
	require.NoError(t, loader.Load())

	section := sampleSection{Interval: time.Second}
	require.NoError(t, Bind(loader, "consul", &section))
	assert.Equal(t, "localhost:8500", section.Endpoint)
}

func TestBind_ValidationError(t *testing.T) {
	loader := NewLoader()
	loader.AddSource(NewMapSource("m", 1, map[string]interface{}{
		"consul": map[string]interface{}{"interval": "10ms"},
	}))
	require.NoError(t, loader.Load())

	var section sampleSection
	assert.ErrorContains(t, Bind(loader, "consul", &section), "interval")
}

func TestEnvSource_Bindings(t *testing.T) {
	t.Setenv("HELLO_CONSUL_SERVICE_NAME", "svc")
	src := NewEnvSource("HELLO", 50).AddBinding("consul.service_name", "CONSUL_SERVICE_NAME")

	data, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, "svc", data["consul.service_name"])
	assert.Equal(t, "svc", data["consul.service.name"])
}

func TestFileSource_Missing(t *testing.T) {
	data, err := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"), 10).Load()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestBind_NilLoader(t *testing.T) {
	section := sampleSection{}
	assert.Error(t, Bind(nil, "consul", &section), "未加载配置时仍填充默认值并校验")
}
