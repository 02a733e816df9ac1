package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/geodist/geodesic"
)

const sampleTOML = `
version = "1.2.0"
service = "geodist-test"

[calculation]
method = "vincenty"
ellipse_a = 6378.137
ellipse_f = 0.0033528106647474805
tolerance = 1e-10
max_iterations = 200
workers = 3
serial_threshold = 64

[log]
level = "debug"

[cache]
enabled = true
ttl = "30s"

[cache.redis]
enabled = true
addr = "127.0.0.1:6379"
password = "hunter2"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geodist.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	var conf Config
	require.NoError(t, Load(writeConfig(t, sampleTOML), &conf))

	assert.Equal(t, "1.2.0", conf.Version)
	assert.Equal(t, "geodist-test", conf.Service)
	assert.Equal(t, "vincenty", conf.Calculation.Method)
	require.NotNil(t, conf.Calculation.MaxIterations)
	assert.Equal(t, 200, *conf.Calculation.MaxIterations)
	assert.Nil(t, conf.Calculation.EllipseB)
	assert.Equal(t, 30*time.Second, conf.Cache.TTL)
	assert.Equal(t, "geodist:", conf.Cache.Prefix, "default applies when the file omits it")
	assert.Equal(t, "/metrics", conf.Metrics.Path)

	method, err := conf.Calculation.ParsedMethod()
	require.NoError(t, err)
	assert.Equal(t, geodesic.Vincenty, method)

	s, err := conf.Calculation.Settings()
	require.NoError(t, err)
	assert.Equal(t, 200, s.MaxIterations())
	assert.Equal(t, 3, s.Workers())
	assert.Equal(t, 64, s.SerialThreshold())
	assert.InDelta(t, 1e-10, s.Tolerance(), 0)
	assert.InDelta(t, geodesic.DefaultSphericalRadius, s.SphericalRadius(), 0)
	assert.InDelta(t, 6356.752314245, s.EllipseB(), 1e-6)
	assert.Same(t, &conf, Current())
}

func TestReload_PublishesNewInstance(t *testing.T) {
	path := writeConfig(t, sampleTOML)
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	require.NoError(t, v.ReadInConfig())

	var conf Config
	require.NoError(t, v.Unmarshal(&conf))

	mu.Lock()
	prevCurrent, prevHooks := current, onReload
	current, onReload = &conf, nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		current, onReload = prevCurrent, prevHooks
		mu.Unlock()
	})

	var got *Config
	RegisterReloadHook(func(c *Config) { got = c })

	rewrite := func(method string) {
		content := strings.Replace(sampleTOML, `method = "vincenty"`, `method = "`+method+`"`, 1)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		require.NoError(t, v.ReadInConfig())
	}

	rewrite("haversine")
	next, err := reload(v)
	require.NoError(t, err)
	assert.Equal(t, "haversine", next.Calculation.Method)
	assert.Equal(t, "vincenty", conf.Calculation.Method, "previous instance is left untouched")
	assert.Same(t, next, Current())
	assert.Same(t, next, got)

	rewrite("karney")
	_, err = reload(v)
	require.Error(t, err)
	assert.Same(t, next, Current(), "rejected reload keeps the published config")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GEODIST_CALCULATION_WORKERS", "7")

	var conf Config
	require.NoError(t, Load(writeConfig(t, sampleTOML), &conf))
	assert.Equal(t, 7, conf.Calculation.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown method", "[calculation]\nmethod = \"karney\"\n"},
		{"negative workers", "[calculation]\nworkers = -1\n"},
		{"flattening out of range", "[calculation]\nellipse_f = 1.5\n"},
		{"redis without addr", "[cache.redis]\nenabled = true\n"},
		{"malformed toml", "[calculation\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var conf Config
			assert.Error(t, Load(writeConfig(t, tt.content), &conf))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var conf Config
	assert.Error(t, Load(filepath.Join(t.TempDir(), "absent.toml"), &conf))
}

func TestDefault(t *testing.T) {
	conf, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "haversine", conf.Calculation.Method)
	assert.Equal(t, "info", conf.Log.Level)

	s, err := conf.Calculation.Settings()
	require.NoError(t, err)
	assert.Equal(t, geodesic.DefaultSettings().String(), s.String())
}

func TestCalculationConfig_InconsistentEllipsoid(t *testing.T) {
	a, b, f := 6378.137, 6000.0, 0.5
	_, err := CalculationConfig{Method: "vincenty", EllipseA: &a, EllipseB: &b, EllipseF: &f}.Settings()
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	m := map[string]any{
		"cache": map[string]any{
			"redis": map[string]any{"addr": "localhost", "password": "hunter2"},
		},
		"items": []any{map[string]any{"api_key": "abc"}},
	}
	mask(m)

	redis := m["cache"].(map[string]any)["redis"].(map[string]any)
	assert.Equal(t, "******", redis["password"])
	assert.Equal(t, "localhost", redis["addr"])
	assert.Equal(t, "******", m["items"].([]any)[0].(map[string]any)["api_key"])
}

func TestLoggingConfig(t *testing.T) {
	conf := Config{Service: "geodist", Log: LogConfig{Level: "warn", File: "/tmp/x.log", MaxSize: 10}}
	lc := conf.LoggingConfig("engine")
	assert.Equal(t, "geodist", lc.Service)
	assert.Equal(t, "engine", lc.Module)
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, 10, lc.MaxSize)
}
