package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg := Load(v)

	assert.Equal(t, DefaultAnalyzer, cfg.Analyzer)
	assert.True(t, cfg.ManualHookEnabled)
	assert.False(t, cfg.OnCreateHookEnabled)
	assert.False(t, cfg.OnUpdateHookEnabled)
	assert.True(t, cfg.ReportAsAttribute)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 60, cfg.PollMaxTicks)
	assert.Equal(t, 5*time.Minute, cfg.PollBudget())
	assert.Equal(t, DefaultReportTemplate, cfg.Template())
}

func TestValidateMandatory(t *testing.T) {
	cfg := ModuleConfig{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL is mandatory")
	assert.Contains(t, err.Error(), "API key is mandatory")
	assert.Contains(t, err.Error(), "analyzer name is mandatory")

	cfg = ModuleConfig{URL: "cortex.local", APIKey: "k", Analyzer: "a"}
	assert.Error(t, cfg.Validate())

	cfg = ModuleConfig{URL: "https://cortex.local:9001", APIKey: "k", Analyzer: "a"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultPollMaxTicks, cfg.PollMaxTicks)
	assert.Equal(t, 1, cfg.MaxConcurrent)
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
cortex:
  url: https://cortex.example.org
  api_key: secret
  analyzer: Abuse_Finder_3_0
  on_create_hook_enabled: true
  report_as_attribute: false
  poll_interval: 2s
  poll_max_ticks: 10
`)))

	cfg := Load(v)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://cortex.example.org", cfg.URL)
	assert.Equal(t, "Abuse_Finder_3_0", cfg.Analyzer)
	assert.True(t, cfg.OnCreateHookEnabled)
	assert.True(t, cfg.ManualHookEnabled)
	assert.False(t, cfg.ReportAsAttribute)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.PollMaxTicks)
	assert.Equal(t, "********", cfg.Redacted().APIKey)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestLiveUpdateIsCopyOnWrite(t *testing.T) {
	live := NewLive(ModuleConfig{Analyzer: "a"})
	before := live.Snapshot()

	live.Update(func(c *ModuleConfig) { c.Analyzer = "b" })

	assert.Equal(t, "a", before.Analyzer)
	assert.Equal(t, "b", live.Snapshot().Analyzer)
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf))

	var got Schema
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, ModuleName, got.Name)
	assert.False(t, got.PipelineSupport)

	byName := map[string]Param{}
	for _, p := range got.Configuration {
		byName[p.Name] = p
	}
	require.Contains(t, byName, "cortexanalyzer_analyzer")
	assert.Equal(t, DefaultAnalyzer, byName["cortexanalyzer_analyzer"].Default)
	assert.Equal(t, "sensitive_string", byName["cortexanalyzer_key"].Type)
	assert.True(t, byName["cortexanalyzer_url"].Mandatory)
	assert.False(t, byName["cortexanalyzer_report_template"].Mandatory)
}

func TestTemplateWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")
	require.NoError(t, os.WriteFile(path, []byte("v1 {{ .results }}"), 0o644))

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	live := NewLive(ModuleConfig{})
	w := NewTemplateWatcher(path, live, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, "v1 {{ .results }}", live.Snapshot().ReportTemplate)

	require.NoError(t, os.WriteFile(path, []byte("v2 {{ .results }}"), 0o644))
	assert.Eventually(t, func() bool {
		return live.Snapshot().ReportTemplate == "v2 {{ .results }}"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTemplateWatcherMissingFile(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewTemplateWatcher(filepath.Join(t.TempDir(), "missing.html"), NewLive(ModuleConfig{}), logger)
	assert.Error(t, w.Start(context.Background()))
}
