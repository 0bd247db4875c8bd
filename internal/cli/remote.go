package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/nudge/internal/client"
)

var serverURL string

var dismissCmd = &cobra.Command{
	Use:   "dismiss <candidate-id>",
	Short: "Dismiss a candidate for the running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Dismiss(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dismissed %s\n", args[0])
		return nil
	},
}

var actCmd = &cobra.Command{
	Use:   "act <candidate-id> <action-id>",
	Short: "Act on a recently shown candidate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Act(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], args[1])
		return nil
	},
}

var cooldownsCmd = &cobra.Command{
	Use:   "cooldowns",
	Short: "Show today's cooldown records from the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cds, err := newClient().Cooldowns()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cds)
	},
}

func init() {
	for _, c := range []*cobra.Command{dismissCmd, actCmd, cooldownsCmd} {
		c.Flags().StringVar(&serverURL, "url", "", "Server URL (default $NUDGE_URL or the configured listen address)")
	}
}

func newClient() *client.Client {
	if serverURL == "" && os.Getenv("NUDGE_URL") == "" {
		return client.New("http://" + cfg.ListenAddr())
	}
	return client.New(serverURL)
}
