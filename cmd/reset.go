package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/cortex-analyzer/internal/bus"
)

var (
	confirmReset bool
	resetRedis   bool
	resetDB      bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset hook streams and/or the local store",
	Long: `Reset deletes the module's Redis streams and/or empties the SQLite store.

By default, both are reset. Use --redis-only or --db-only to pick one.

WARNING: This operation is irreversible.

Examples:
  # Reset both (requires confirmation)
  cortex-analyzer reset

  # Reset with automatic confirmation
  cortex-analyzer reset --yes

  # Reset only the store
  cortex-analyzer reset --db-only`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetRedis, "redis-only", false, "Reset only the Redis streams")
	resetCmd.Flags().BoolVar(&resetDB, "db-only", false, "Reset only the store")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := GetConfig()

	if !resetRedis && !resetDB {
		resetRedis = true
		resetDB = true
	}
	if resetRedis && c.Redis.URL == "" {
		if !resetDB {
			return fmt.Errorf("no Redis URL configured")
		}
		resetRedis = false
	}

	var targets []string
	if resetRedis {
		targets = append(targets, "Redis streams "+bus.HooksStream+", "+bus.ResultsStream)
	}
	if resetDB {
		targets = append(targets, "IOCs, attributes and runs in "+c.Database.Path)
	}
	pterm.Warning.Printf("This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset {
		ok, _ := pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show("Are you sure you want to continue?")
		if !ok {
			pterm.Info.Println("Reset operation cancelled.")
			return nil
		}
	}

	if resetRedis {
		if err := resetStreams(ctx, c.Redis.URL); err != nil {
			if !resetDB {
				return fmt.Errorf("failed to reset Redis streams: %w", err)
			}
			pterm.Warning.Printf("Failed to reset Redis streams: %v\n", err)
		} else {
			pterm.Success.Println("Redis streams cleared")
		}
	}

	if resetDB {
		st, err := openStore(c)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		pterm.Success.Println("Store cleared")
	}
	return nil
}

func resetStreams(ctx context.Context, redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	n, err := client.Del(ctx, bus.HooksStream, bus.ResultsStream).Result()
	if err != nil {
		return fmt.Errorf("failed to delete streams: %w", err)
	}
	pterm.Info.Printf("Deleted %d stream(s)\n", n)
	return nil
}
