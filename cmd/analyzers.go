package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// analyzersCmd lists the analyzers enabled on the Cortex instance.
var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List analyzers enabled on Cortex",
	RunE:  runAnalyzers,
}

func init() {
	rootCmd.AddCommand(analyzersCmd)
}

func runAnalyzers(cmd *cobra.Command, args []string) error {
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

	client, err := newCortexClient(mc, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := client.ListAnalyzers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list analyzers: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	data := pterm.TableData{{"", "Name", "Version", "Data types", "ID"}}
	configured := false
	for _, a := range list {
		mark := ""
		if a.Name == mc.Analyzer {
			mark = pterm.Green("*")
			configured = true
		}
		data = append(data, []string{mark, a.Name, a.Version, strings.Join(a.DataTypeList, ","), a.ID})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if configured {
		pterm.Success.Printf("Configured analyzer %s is enabled\n", mc.Analyzer)
	} else {
		pterm.Warning.Printf("Configured analyzer %s is not enabled on %s\n", mc.Analyzer, mc.URL)
	}
	return nil
}
