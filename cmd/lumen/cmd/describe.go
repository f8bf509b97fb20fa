package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/lumen/internal/core/config"
	"github.com/solatis/lumen/internal/engine"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the built-in data models, operators and script languages as JSON",
	Long: `Describe prints what condition trees can reference without any plugin
connected: the built-in time and schedule models (with the schedules from the
config file), the built-in operators and the script languages.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		eng, err := engine.New(engine.Options{Schedules: cfg.Schedules})
		if err != nil {
			return err
		}
		defer eng.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(eng.Describe())
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
