package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/cortex-analyzer/internal/store"
)

var (
	attrIOCID string
	attrLimit int
	attrRaw   bool
)

// attributesCmd shows what the module stored for IOCs
var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "Show IOC attributes and analysis runs",
	Long: `Show the attributes and analysis runs recorded for an IOC.
Without --ioc-id the most recent IOCs are listed.

Examples:
  # List recent IOCs
  cortex-analyzer attributes

  # Show attributes and runs of one IOC
  cortex-analyzer attributes --ioc-id 42

  # Dump the stored HTML report
  cortex-analyzer attributes --ioc-id 42 --raw`,
	RunE: runAttributes,
}

func init() {
	rootCmd.AddCommand(attributesCmd)

	attributesCmd.Flags().StringVar(&attrIOCID, "ioc-id", "", "IOC identifier")
	attributesCmd.Flags().IntVar(&attrLimit, "limit", 20, "Maximum number of items to show")
	attributesCmd.Flags().BoolVar(&attrRaw, "raw", false, "Print attribute values verbatim")
}

func runAttributes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(GetConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	if attrIOCID == "" {
		return listIOCs(ctx, st)
	}
	return showIOC(ctx, st, attrIOCID)
}

func listIOCs(ctx context.Context, st *store.Store) error {
	iocs, err := st.ListIOCs(ctx, attrLimit)
	if err != nil {
		return err
	}
	if len(iocs) == 0 {
		pterm.Info.Println("No IOCs found.")
		return nil
	}
	data := pterm.TableData{{"ID", "Type", "Value", "Updated"}}
	for _, i := range iocs {
		data = append(data, []string{i.ID, i.Type, truncateString(i.Value, 60), i.UpdatedAt.Format(time.RFC3339)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func showIOC(ctx context.Context, st *store.Store, id string) error {
	ioc, err := st.GetIOC(ctx, id)
	if err != nil {
		return err
	}
	pterm.DefaultSection.Printf("IOC %s (%s) %s", ioc.ID, ioc.Type, ioc.Value)

	attrs, err := st.GetAttributes(ctx, id)
	if err != nil {
		return err
	}
	if attrRaw {
		for _, a := range attrs {
			fmt.Printf("--- %s / %s (%s)\n%s\n", a.Tab, a.Field, a.FieldType, a.Value)
		}
	} else if len(attrs) > 0 {
		data := pterm.TableData{{"Tab", "Field", "Type", "Size", "Updated"}}
		for _, a := range attrs {
			data = append(data, []string{a.Tab, a.Field, a.FieldType, strconv.Itoa(len(a.Value)), a.UpdatedAt.Format(time.RFC3339)})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	} else {
		pterm.Info.Println("No attributes.")
	}

	runs, err := st.ListRuns(ctx, id, attrLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}
	pterm.DefaultSection.Println("Analysis runs")
	data := pterm.TableData{{"Started", "Hook", "Analyzer", "Job", "State", "Outcome", "Duration", "Error"}}
	for _, r := range runs {
		data = append(data, []string{
			r.StartedAt.Format(time.RFC3339), r.Hook, r.Analyzer, r.JobID, r.State,
			r.Outcome, r.Duration.Round(time.Millisecond).String(), truncateString(r.Error, 50),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
