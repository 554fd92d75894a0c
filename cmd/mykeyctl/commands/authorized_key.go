package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewAuthorizedKeyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "authorized-key <id|nickname>",
		Short: "Print a key as an authorized_keys line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			key, err := resolveKey(cmd.Context(), svc, args[0])
			if err != nil {
				return err
			}

			line, err := svc.AuthorizedKey(key)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}
