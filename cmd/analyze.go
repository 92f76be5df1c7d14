package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/cortex-analyzer/internal/analyzer"
	"github.com/Ashfaaq98/cortex-analyzer/internal/hooks"
)

var (
	analyzeType  string
	analyzeValue string
	analyzeIOCID string
	analyzePrint bool
)

// analyzeCmd runs one IOC through the configured analyzer, as the manual trigger hook does.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the configured Cortex analyzer on one IOC",
	Long: `Analyze submits one IOC to the configured Cortex analyzer, waits for the job and
attaches the rendered report to the IOC in the local store.

Examples:
  # Analyze a domain
  cortex-analyzer analyze --type domain --value evil.example

  # Analyze a hash and print the rendered HTML
  cortex-analyzer analyze --type sha256 --value e3b0c442... --print`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "IOC type (domain, ip-src, md5, sha256, ...)")
	analyzeCmd.Flags().StringVar(&analyzeValue, "value", "", "IOC value")
	analyzeCmd.Flags().StringVar(&analyzeIOCID, "ioc-id", "", "IOC identifier (generated when empty)")
	analyzeCmd.Flags().BoolVar(&analyzePrint, "print", false, "Print the rendered HTML report to stdout")
	_ = analyzeCmd.MarkFlagRequired("type")
	_ = analyzeCmd.MarkFlagRequired("value")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	if _, err := analyzer.ParseKind(analyzeType); err != nil {
		return err
	}
	id := strings.TrimSpace(analyzeIOCID)
	if id == "" {
		id = uuid.NewString()
	}

	client, err := newCortexClient(mc, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	d := hooks.NewDispatcher(live, client, st, logger)

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting on %s (up to %s)", mc.Analyzer, mc.PollBudget()))
	outcomes, err := d.Handle(ctx, hooks.HookManual, []hooks.IOC{{ID: id, Value: analyzeValue, Type: analyzeType}})
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	out := outcomes[0]

	switch out.Outcome {
	case string(analyzer.OutcomePublished):
		spinner.Success(fmt.Sprintf("Report attached to IOC %s (job %s)", id, out.JobID))
	case string(analyzer.OutcomeRendered):
		spinner.Success(fmt.Sprintf("Report rendered for IOC %s (job %s), attaching disabled", id, out.JobID))
	case string(analyzer.OutcomeIncomplete):
		spinner.Warning(fmt.Sprintf("Job %s did not complete within %s", out.JobID, mc.PollBudget()))
	default:
		spinner.Fail(fmt.Sprintf("Analysis %s: %s", out.Outcome, out.Error))
	}

	if analyzePrint && out.HTML != "" {
		fmt.Fprintln(os.Stdout, out.HTML)
	}
	if out.Outcome == string(analyzer.OutcomeFailed) {
		return fmt.Errorf("analysis failed: %s", out.Error)
	}
	return nil
}
