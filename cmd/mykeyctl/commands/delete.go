package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDeleteCommand(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id|nickname>",
		Short: "Delete a stored key",
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

			if !yes {
				return fmt.Errorf("refusing to delete %s without --yes", key.Nickname())
			}

			if err := svc.Delete(cmd.Context(), key.ID()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key.Nickname())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")

	return cmd
}
