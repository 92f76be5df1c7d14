package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/cortex-analyzer/internal/bus"
	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
	"github.com/Ashfaaq98/cortex-analyzer/internal/hooks"
)

// serveCmd runs the hook intake until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve IOC hooks from Redis Streams and HTTP",
	Long: `Serve consumes IOC hook notifications from the Redis stream "ioc_hooks" (when --redis
is set) and from the HTTP endpoint POST /api/v1/hooks/{hook}, runs each IOC through the
configured analyzer and publishes outcomes on the "cortex_results" stream.

Examples:
  cortex-analyzer serve --redis redis://localhost:6379 --http-bind 127.0.0.1:8088
  cortex-analyzer serve --http-token s3cret --template-file ./report.html`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("http-bind", "127.0.0.1:8088", "HTTP hook intake address (empty disables it)")
	f.String("http-token", "", "Bearer token required on the HTTP intake")
	f.Int("http-rps", 10, "HTTP intake requests per second (0 disables rate limiting)")
	f.Int("http-burst", 20, "HTTP intake burst size")
	f.String("consumer", "", "Redis consumer name (defaults to the hostname)")
	f.Int64("results-maxlen", 10000, "Approximate cap on the results stream length (0 disables trimming)")

	viper.BindPFlag("http.bind", f.Lookup("http-bind"))
	viper.BindPFlag("http.token", f.Lookup("http-token"))
	viper.BindPFlag("http.rps", f.Lookup("http-rps"))
	viper.BindPFlag("http.burst", f.Lookup("http-burst"))
	viper.BindPFlag("redis.consumer", f.Lookup("consumer"))
	viper.BindPFlag("redis.results_maxlen", f.Lookup("results-maxlen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := GetConfig()

	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	live, err := moduleConfig(c, logger)
	if err != nil {
		return err
	}
	mc := live.Snapshot()

	if mc.ReportTemplateFile != "" {
		if err := config.NewTemplateWatcher(mc.ReportTemplateFile, live, logger).Start(ctx); err != nil {
			return err
		}
	}

	client, err := newCortexClient(mc, logger)
	if err != nil {
		return err
	}
	defer func() {
		m := client.Metrics()
		logger.WithFields(map[string]interface{}{
			"api_calls_ok":    m.APICallsSuccess,
			"api_calls_error": m.APICallsError,
		}).Info("Cortex client stopped")
		client.Close()
	}()

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	b := bus.NewBus(c.Redis.URL, logger)
	defer b.Close()

	d := hooks.NewDispatcher(live, client, st, logger, hooks.WithBus(b))

	bind := viper.GetString("http.bind")
	if bind == "" && c.Redis.URL == "" {
		return fmt.Errorf("nothing to serve: set --http-bind or --redis")
	}
	if bind != "" {
		srv := hooks.NewHTTPServer(hooks.HTTPOptions{
			Bind:  bind,
			Token: viper.GetString("http.token"),
			RPS:   viper.GetInt("http.rps"),
			Burst: viper.GetInt("http.burst"),
		}, d, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}

	rb, ok := b.(*bus.RedisBus)
	if !ok {
		logger.Info("Redis stream intake disabled")
		<-ctx.Done()
		logger.Info("Shutting down")
		return nil
	}

	if maxLen := viper.GetInt64("redis.results_maxlen"); maxLen > 0 {
		if err := rb.CleanupOldMessages(ctx, bus.ResultsStream, maxLen); err != nil {
			logger.WithError(err).Warn("Failed to trim results stream")
		}
	}
	consumer := viper.GetString("redis.consumer")
	if consumer == "" {
		consumer, _ = os.Hostname()
	}
	if stats, err := rb.GetStats(ctx); err == nil {
		logger.WithField("stats", stats).Debug("Redis streams")
	}

	err = d.Consume(ctx, rb, consumer)
	if ctx.Err() != nil {
		logger.Info("Shutting down")
		return nil
	}
	return err
}
