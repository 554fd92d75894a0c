package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mykeypanel/internal/application"
)

func NewAddSecurityKeyCommand(app *App) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "add-security-key <nickname> <public-key-file>",
		Short: "Register a hardware security key by its public key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read public key: %w", err)
			}

			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			key, err := svc.RegisterSecurityKey(cmd.Context(), application.SecurityKeyRequest{
				Nickname:  args[0],
				PublicKey: pub,
				Label:     label,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) with id %d\n",
				key.Nickname(), svc.Describe(key, app.Messages()), key.ID())
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "FIDO2", "Kind of security key, shown in descriptions")

	return cmd
}
