package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mykeypanel/internal/application"
)

func NewPasswdCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd <id|nickname>",
		Short: "Change or remove the passphrase of a key",
		Long: `Re-encrypt a stored private key under a new passphrase. Entering an empty
new passphrase stores the key unencrypted. A wrong old passphrase leaves the
key unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			key, err := resolveKey(cmd.Context(), svc, args[0])
			if err != nil {
				return err
			}

			if key.SecurityKey() || !key.HasPrivateKey() {
				return fmt.Errorf("%s: %w", key.Nickname(), application.ErrNoLocalKeyMaterial)
			}

			oldPassphrase := ""
			if key.Encrypted() {
				if oldPassphrase, err = app.Prompter.Passphrase("Enter old passphrase: "); err != nil {
					return err
				}
			}
			newPass, err := newPassphrase(app.Prompter, "new passphrase")
			if err != nil {
				return err
			}

			if err := svc.ChangePassphrase(cmd.Context(), key.ID(), oldPassphrase, newPass); err != nil {
				return err
			}

			if newPass == "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed passphrase from %s\n", key.Nickname())
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Changed passphrase of %s\n", key.Nickname())
			}
			return nil
		},
	}

	return cmd
}
