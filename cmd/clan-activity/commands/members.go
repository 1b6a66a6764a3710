package commands

import (
	"fmt"

	"clanactivity/internal/components/telemetry"
	"clanactivity/internal/scrapers/bungie"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(membersCmd)
}

// groupArg picks the clan from the arguments, falling back to the config.
func groupArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if config.GroupId != "" {
		return config.GroupId, nil
	}
	return "", fmt.Errorf("no group id given and group_id is not configured")
}

func newClient(tel telemetry.API) (*bungie.Client, error) {
	opts, err := config.ClientOptions()
	if err != nil {
		return nil, err
	}
	return bungie.NewClient(opts, tel)
}

var membersCmd = &cobra.Command{
	Use:   "members [group id]",
	Short: "Lists the members of a clan as the clan page shows them.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := groupArg(args)
		if err != nil {
			return err
		}

		client, err := newClient(telemetry.SlogAPI{})
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		members, err := client.ClanMembers(cmd.Context(), group)
		if err != nil {
			return err
		}

		renderRoster(cmd.OutOrStdout(), members)
		return nil
	},
}
