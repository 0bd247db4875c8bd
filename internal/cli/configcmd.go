package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configWrite string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after defaults, the config file and NUDGE_* environment overrides are merged. With --write, save it instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configWrite != "" {
			if err := cfg.Write(configWrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configWrite)
			return nil
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configCmd.Flags().StringVar(&configWrite, "write", "", "Write the effective config to this path")
}
