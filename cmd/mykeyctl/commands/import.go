package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mykeypanel/internal/application"
)

func NewImportCommand(app *App) *cobra.Command {
	var opts keyOptions

	cmd := &cobra.Command{
		Use:   "import <nickname> <private-key-file>",
		Short: "Import an existing private key",
		Long: `Import an OpenSSH or PEM private key. The key is stored in the OpenSSH format
under the passphrase it was imported with. An encrypted key prompts for its
passphrase.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read private key: %w", err)
			}

			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			req := application.ImportRequest{
				Nickname:   args[0],
				PrivateKey: encoded,
				Startup:    opts.startup,
				ConfirmUse: opts.confirmUse,
				Lifetime:   opts.lifetime,
			}

			key, err := svc.Import(cmd.Context(), req)
			if errors.Is(err, application.ErrDecodeFailed) && !opts.noPassphrase {
				// Probably encrypted: ask once and retry.
				if req.Passphrase, err = app.Prompter.Passphrase("Enter passphrase for " + args[1] + ": "); err != nil {
					return err
				}
				key, err = svc.Import(cmd.Context(), req)
			}
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s) with id %d\n",
				key.Nickname(), svc.Describe(key, app.Messages()), key.ID())
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().Lookup("no-passphrase").Usage = "Fail instead of prompting when the key is encrypted"

	return cmd
}
