package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/cortex-analyzer/internal/analyzer"
	"github.com/Ashfaaq98/cortex-analyzer/internal/bus"
	"github.com/Ashfaaq98/cortex-analyzer/internal/hooks"
)

var (
	enqueueHook  string
	enqueueType  string
	enqueueValue string
	enqueueIOCID string
)

// enqueueCmd publishes a hook notification for a running serve instance
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Publish an IOC hook on the Redis hooks stream",
	Long: `Enqueue publishes one hook notification on the "ioc_hooks" stream, the way the host
does when an IOC is created, updated or manually triggered.

Example:
  cortex-analyzer enqueue --redis redis://localhost:6379 --hook on_postload_ioc_create --type domain --value evil.example`,
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringVar(&enqueueHook, "hook", string(hooks.HookManual), "Hook name")
	enqueueCmd.Flags().StringVar(&enqueueType, "type", "", "IOC type")
	enqueueCmd.Flags().StringVar(&enqueueValue, "value", "", "IOC value")
	enqueueCmd.Flags().StringVar(&enqueueIOCID, "ioc-id", "", "IOC identifier (generated when empty)")
	_ = enqueueCmd.MarkFlagRequired("type")
	_ = enqueueCmd.MarkFlagRequired("value")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	c := GetConfig()
	if c.Redis.URL == "" {
		return fmt.Errorf("no Redis URL configured")
	}
	hook, err := hooks.ParseHook(enqueueHook)
	if err != nil {
		return err
	}
	if _, err := analyzer.ParseKind(enqueueType); err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}

	rb, err := bus.NewRedisBus(c.Redis.URL, logger)
	if err != nil {
		return err
	}
	defer rb.Close()

	id := enqueueIOCID
	if id == "" {
		id = uuid.NewString()
	}
	if err := rb.PublishHook(cmd.Context(), bus.HookMessage{
		Hook:      string(hook),
		IOCID:     id,
		IOCValue:  enqueueValue,
		IOCType:   enqueueType,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		return err
	}
	pterm.Success.Printf("Enqueued %s for IOC %s\n", hook, id)
	return nil
}
