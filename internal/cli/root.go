package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/nudge/internal/config"
	"github.com/lazypower/nudge/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Context-aware suggestions for every surface",
	Long:  "Nudge turns tasks, calendar, routines and condition signals into a small, deduplicated set of suggestions per UI surface.",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		return logging.Setup(cfg.Logging)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.nudge/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(actCmd)
	rootCmd.AddCommand(cooldownsCmd)
	rootCmd.AddCommand(configCmd)
}
