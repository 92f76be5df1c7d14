// Package config holds the Cortex module configuration and its schema.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Viper keys for the module configuration.
const (
	KeyURL                = "cortex.url"
	KeyAPIKey             = "cortex.api_key"
	KeyAnalyzer           = "cortex.analyzer"
	KeyManualHookEnabled  = "cortex.manual_hook_enabled"
	KeyOnCreateHook       = "cortex.on_create_hook_enabled"
	KeyOnUpdateHook       = "cortex.on_update_hook_enabled"
	KeyReportAsAttribute  = "cortex.report_as_attribute"
	KeyReportTemplate     = "cortex.report_template"
	KeyReportTemplateFile = "cortex.report_template_file"
	KeyVerifyTLS          = "cortex.verify_tls"
	KeyTimeout            = "cortex.timeout"
	KeyRateLimitRPS       = "cortex.rate_limit_rps"
	KeyBurstLimit         = "cortex.burst_limit"
	KeyPollInterval       = "cortex.poll_interval"
	KeyPollMaxTicks       = "cortex.poll_max_ticks"
	KeyMaxConcurrent      = "cortex.max_concurrent"
)

const (
	DefaultAnalyzer      = "VirusTotal_GetReport_3_0"
	DefaultPollInterval  = 5 * time.Second
	DefaultPollMaxTicks  = 60
	DefaultTimeout       = 30 * time.Second
	DefaultRateLimitRPS  = 5
	DefaultBurstLimit    = 10
	DefaultMaxConcurrent = 2
)

// ModuleConfig is the read-only configuration of one pipeline invocation.
type ModuleConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Analyzer string `mapstructure:"analyzer" yaml:"analyzer"`

	// Triggers
	ManualHookEnabled   bool `mapstructure:"manual_hook_enabled" yaml:"manual_hook_enabled"`
	OnCreateHookEnabled bool `mapstructure:"on_create_hook_enabled" yaml:"on_create_hook_enabled"`
	OnUpdateHookEnabled bool `mapstructure:"on_update_hook_enabled" yaml:"on_update_hook_enabled"`

	// Insights
	ReportAsAttribute  bool   `mapstructure:"report_as_attribute" yaml:"report_as_attribute"`
	ReportTemplate     string `mapstructure:"report_template" yaml:"report_template"`
	ReportTemplateFile string `mapstructure:"report_template_file" yaml:"report_template_file"`

	// Transport
	VerifyTLS    bool          `mapstructure:"verify_tls" yaml:"verify_tls"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimitRPS int           `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	BurstLimit   int           `mapstructure:"burst_limit" yaml:"burst_limit"`

	// Polling
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollMaxTicks  int           `mapstructure:"poll_max_ticks" yaml:"poll_max_ticks"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// SetDefaults registers every module default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAnalyzer, DefaultAnalyzer)
	v.SetDefault(KeyManualHookEnabled, true)
	v.SetDefault(KeyOnCreateHook, false)
	v.SetDefault(KeyOnUpdateHook, false)
	v.SetDefault(KeyReportAsAttribute, true)
	v.SetDefault(KeyReportTemplate, "")
	v.SetDefault(KeyReportTemplateFile, "")
	v.SetDefault(KeyVerifyTLS, true)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyRateLimitRPS, DefaultRateLimitRPS)
	v.SetDefault(KeyBurstLimit, DefaultBurstLimit)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyPollMaxTicks, DefaultPollMaxTicks)
	v.SetDefault(KeyMaxConcurrent, DefaultMaxConcurrent)
}

// Load reads the module configuration from v without validating it.
func Load(v *viper.Viper) ModuleConfig {
	return ModuleConfig{
		URL:                 strings.TrimSpace(v.GetString(KeyURL)),
		APIKey:              strings.TrimSpace(v.GetString(KeyAPIKey)),
		Analyzer:            strings.TrimSpace(v.GetString(KeyAnalyzer)),
		ManualHookEnabled:   v.GetBool(KeyManualHookEnabled),
		OnCreateHookEnabled: v.GetBool(KeyOnCreateHook),
		OnUpdateHookEnabled: v.GetBool(KeyOnUpdateHook),
		ReportAsAttribute:   v.GetBool(KeyReportAsAttribute),
		ReportTemplate:      v.GetString(KeyReportTemplate),
		ReportTemplateFile:  strings.TrimSpace(v.GetString(KeyReportTemplateFile)),
		VerifyTLS:           v.GetBool(KeyVerifyTLS),
		Timeout:             v.GetDuration(KeyTimeout),
		RateLimitRPS:        v.GetInt(KeyRateLimitRPS),
		BurstLimit:          v.GetInt(KeyBurstLimit),
		PollInterval:        v.GetDuration(KeyPollInterval),
		PollMaxTicks:        v.GetInt(KeyPollMaxTicks),
		MaxConcurrent:       v.GetInt(KeyMaxConcurrent),
	}
}

// Validate checks the mandatory parameters and normalizes numeric options.
func (c *ModuleConfig) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("cortex URL is mandatory"))
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("cortex URL %q is not an absolute URL", c.URL))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("cortex API key is mandatory"))
	}
	if c.Analyzer == "" {
		errs = append(errs, errors.New("cortex analyzer name is mandatory"))
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollMaxTicks <= 0 {
		c.PollMaxTicks = DefaultPollMaxTicks
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
	return errors.Join(errs...)
}

// Template returns the configured report template, or the bundled default when none is set.
func (c ModuleConfig) Template() string {
	if strings.TrimSpace(c.ReportTemplate) == "" {
		return DefaultReportTemplate
	}
	return c.ReportTemplate
}

// PollBudget is the longest time a run waits on a job.
func (c ModuleConfig) PollBudget() time.Duration {
	return c.PollInterval * time.Duration(c.PollMaxTicks)
}

// Redacted returns a copy safe to log.
func (c ModuleConfig) Redacted() ModuleConfig {
	if c.APIKey != "" {
		c.APIKey = "********"
	}
	return c
}

// Live holds the current configuration snapshot. Readers get an immutable copy;
// writers swap in a new one.
type Live struct {
	p atomic.Pointer[ModuleConfig]
}

// NewLive stores cfg as the first snapshot.
func NewLive(cfg ModuleConfig) *Live {
	l := &Live{}
	l.p.Store(&cfg)
	return l
}

// Snapshot returns a copy of the current configuration.
func (l *Live) Snapshot() ModuleConfig {
	return *l.p.Load()
}

// Update applies fn to a copy of the current snapshot and publishes the result.
func (l *Live) Update(fn func(*ModuleConfig)) {
	for {
		old := l.p.Load()
		next := *old
		fn(&next)
		if l.p.CompareAndSwap(old, &next) {
			return
		}
	}
}
