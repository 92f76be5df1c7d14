package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
)

// schemaCmd dumps the module configuration schema
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the module configuration schema as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.WriteSchema(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
