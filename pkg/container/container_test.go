package container

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/build"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/refer"
)

type journal struct {
	events []string
}

func (j *journal) add(e string) { j.events = append(j.events, e) }

type recorder struct {
	name    string
	journal *journal
	failOn  string
	opened  bool
	peer    any
}

func (r *recorder) Configure(params config.Params) error {
	r.journal.add("configure " + r.name + " " + params.GetString("value"))
	return r.fail("configure")
}

func (r *recorder) SetObservability(observe.Set) { r.journal.add("observe " + r.name) }

func (r *recorder) SetReferences(refs refer.Referencer) error {
	r.journal.add("refs " + r.name)
	r.peer = refs.GetOneOptional(locator.New("test", "recorder", "", "", ""))
	return r.fail("refs")
}

func (r *recorder) UnsetReferences() { r.journal.add("unset " + r.name) }

func (r *recorder) IsOpen() bool { return r.opened }

func (r *recorder) Open(context.Context, string) error {
	if err := r.fail("open"); err != nil {
		return err
	}
	r.opened = true
	r.journal.add("open " + r.name)
	return nil
}

func (r *recorder) Close(context.Context, string) error {
	r.opened = false
	r.journal.add("close " + r.name)
	return nil
}

func (r *recorder) fail(phase string) error {
	if r.failOn == phase {
		return errors.New(phase + " failed")
	}
	return nil
}

func recorderFactory(j *journal, failing map[string]string) build.Factory {
	f := build.NewComponentFactory()
	f.Register(locator.New("test", "recorder", "*", "*", "1.0"), func(loc locator.Locator) (any, error) {
		return &recorder{name: loc.Name(), journal: j, failOn: failing[loc.Name()]}, nil
	})
	return f
}

func recorderConfig(names ...string) *Config {
	cfg := &Config{}
	for _, n := range names {
		cfg.Components = append(cfg.Components, ComponentConfig{
			Locator: locator.New("test", "recorder", "default", n, "1.0"),
			Params:  config.FromTuples("value", n+"-value"),
		})
	}
	return cfg
}

func TestContainer_WiresBeforeOpening(t *testing.T) {
	j := &journal{}
	c := New()
	c.AddFactory(recorderFactory(j, nil))
	c.SetConfig(recorderConfig("a", "b"))

	ctx := context.Background()
	require.NoError(t, c.Open(ctx, "t"))
	assert.True(t, c.IsOpen())
	assert.Len(t, c.Components(), 2)

	assert.Equal(t, []string{
		"configure a a-value", "configure b b-value",
		"observe a", "observe b",
		"refs a", "refs b",
		"open a", "open b",
	}, j.events)

	a := c.Components()[0].(*recorder)
	assert.Same(t, c.Components()[1], a.peer)

	j.events = nil
	require.NoError(t, c.Close(ctx, "t"))
	assert.Equal(t, []string{"close b", "close a", "unset b", "unset a"}, j.events)
	assert.Equal(t, 0, c.References().Len())
	assert.False(t, c.IsOpen())
}

func TestContainer_OpenFailureRollsBack(t *testing.T) {
	j := &journal{}
	c := New()
	c.AddFactory(recorderFactory(j, map[string]string{"b": "open"}))
	c.SetConfig(recorderConfig("a", "b"))

	err := c.Open(context.Background(), "t")
	require.EqualError(t, err, "open failed")
	assert.Contains(t, j.events, "close a")
	assert.Contains(t, j.events, "unset a")
	assert.Empty(t, c.Components())
	assert.False(t, c.IsOpen())
}

func TestContainer_ConfigureFailure(t *testing.T) {
	c := New()
	c.AddFactory(recorderFactory(&journal{}, map[string]string{"a": "configure"}))
	c.SetConfig(recorderConfig("a"))

	err := c.Open(context.Background(), "t")
	assert.True(t, apperr.HasCode(err, "CONFIGURE_FAILED"))
}

func TestContainer_UnknownLocator(t *testing.T) {
	c := New()
	c.SetConfig(&Config{Components: []ComponentConfig{{Locator: locator.New("x", "y", "z", "w", "1.0")}}})
	err := c.Open(context.Background(), "t")
	assert.True(t, apperr.HasCode(err, "CANNOT_CREATE"))
}

func TestContainer_DefaultComponentsFeedObservability(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	c := New()
	c.SetConfig(cfg)
	c.AddComponent(locator.New("test", "recorder", "default", "pre", "1.0"), &recorder{name: "pre", journal: &journal{}})
	ctx := context.Background()
	require.NoError(t, c.Open(ctx, "t"))
	defer c.Close(ctx, "t")

	assert.Len(t, c.Components(), 4)
	assert.Equal(t, observe.LevelInfo, c.Observability().Logger.Level())
	counters, err := refer.OneRequired[*observe.PrometheusCounters](c.References(), PrometheusCountersLocator)
	require.NoError(t, err)
	c.Observability().Counters.IncrementOne("probe")
	assert.NotNil(t, counters.Handler())
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "components.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
components:
  - locator: "morezero:logger:slog:default:1.0"
    level: debug
  - descriptor: "dummies:persistence:memory:default:1.0"
`), 0o600))

	cfg, err := ReadConfig(filepath.Join(dir, "missing.yaml"), path)
	require.NoError(t, err)
	require.Len(t, cfg.Components, 2)
	assert.Equal(t, "logger", cfg.Components[0].Locator.Type())
	assert.Equal(t, "debug", cfg.Components[0].Params.GetString("level"))
	assert.Equal(t, "memory", cfg.Components[1].Locator.Kind())
	assert.Empty(t, cfg.Components[1].Params)

	tomlPath := filepath.Join(dir, "components.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[[components]]
locator = "morezero:counters:prometheus:default:1.0"
namespace = "dummies"
`), 0o600))
	cfg, err = ReadConfig(tomlPath)
	require.NoError(t, err)
	require.Len(t, cfg.Components, 1)
	assert.Equal(t, "dummies", cfg.Components[0].Params.GetString("namespace"))

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("components:\n  - level: debug\n"), 0o600))
	_, err = ReadConfig(badPath)
	assert.True(t, apperr.HasCode(err, "NO_LOCATOR"))
}

func TestReadConfig_FallsBackToDefault(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Chdir(t.TempDir())
	cfg, err := ReadConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Components, 3)
}
