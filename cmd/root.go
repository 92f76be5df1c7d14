package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
	"github.com/Ashfaaq98/cortex-analyzer/internal/logging"
	"github.com/Ashfaaq98/cortex-analyzer/internal/store"
)

var (
	cfgFile   string
	dbPath    string
	redisURL  string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cortex-analyzer",
	Short: "Run IOCs through Cortex analyzers and attach the reports",
	Long: `cortex-analyzer submits indicators of compromise to a Cortex analyzer, waits for the
job to finish and renders the report as an HTML attribute on the indicator.

Features:
- Manual, on-create and on-update IOC hooks with per-hook toggles
- Redis Streams and HTTP hook intake
- Operator-supplied HTML report templates, reloaded on change
- SQLite attribute store with analysis run history`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cortex-analyzer.yaml)")
	pf.StringVar(&dbPath, "db", "./data/cortex-analyzer.db", "SQLite database path")
	pf.StringVar(&redisURL, "redis", "", "Redis connection URL (empty disables the stream intake)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	pf.String("url", "", "Cortex URL, e.g. https://cortex.local:9001")
	pf.String("api-key", "", "Cortex API key")
	pf.String("analyzer", config.DefaultAnalyzer, "Cortex analyzer name")
	pf.String("template-file", "", "HTML report template file, reloaded on change by serve")

	viper.BindPFlag("database.path", pf.Lookup("db"))
	viper.BindPFlag("redis.url", pf.Lookup("redis"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
	viper.BindPFlag(config.KeyURL, pf.Lookup("url"))
	viper.BindPFlag(config.KeyAPIKey, pf.Lookup("api-key"))
	viper.BindPFlag(config.KeyAnalyzer, pf.Lookup("analyzer"))
	viper.BindPFlag(config.KeyReportTemplateFile, pf.Lookup("template-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cortex-analyzer")
	}

	// cortex.api_key <- CORTEX_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	viper.SetDefault("database.path", "./data/cortex-analyzer.db")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	config.SetDefaults(viper.GetViper())
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: viper.GetString("database.path")},
		Redis:    RedisConfig{URL: viper.GetString("redis.url")},
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
		Cortex: config.Load(viper.GetViper()),
	}
}

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig      `mapstructure:"database"`
	Redis    RedisConfig         `mapstructure:"redis"`
	Log      LogConfig           `mapstructure:"log"`
	Cortex   config.ModuleConfig `mapstructure:"cortex"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func newLogger(c Config) (*logrus.Logger, error) {
	return logging.New(c.Log.Level, c.Log.Format, os.Stderr)
}

// moduleConfig validates the Cortex settings and loads the template file when one is set.
func moduleConfig(c Config, logger logrus.FieldLogger) (*config.Live, error) {
	mc := c.Cortex
	if err := mc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cortex configuration: %w", err)
	}
	live := config.NewLive(mc)
	if mc.ReportTemplateFile != "" {
		if err := config.NewTemplateWatcher(mc.ReportTemplateFile, live, logger).Load(); err != nil {
			return nil, err
		}
	}
	logger.WithField("config", fmt.Sprintf("%+v", mc.Redacted())).Debug("Module configuration loaded")
	return live, nil
}

func newCortexClient(mc config.ModuleConfig, logger logrus.FieldLogger) (*cortex.Client, error) {
	return cortex.NewClient(cortex.Options{
		BaseURL:            mc.URL,
		APIKey:             mc.APIKey,
		InsecureSkipVerify: !mc.VerifyTLS,
		Timeout:            mc.Timeout,
		RPS:                mc.RateLimitRPS,
		Burst:              mc.BurstLimit,
		Logger:             logger,
	})
}

func openStore(c Config) (*store.Store, error) {
	st, err := store.NewStore(c.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}
