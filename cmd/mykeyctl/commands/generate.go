package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mykeypanel/internal/application"
	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
)

// keyOptions are the settings shared by generate and import.
type keyOptions struct {
	startup      bool
	confirmUse   bool
	lifetime     int
	noPassphrase bool
}

func (o *keyOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.startup, "startup", false, "Unlock the key when the server starts")
	cmd.Flags().BoolVar(&o.confirmUse, "confirm-use", false, "Ask for confirmation before each use")
	cmd.Flags().IntVar(&o.lifetime, "lifetime", 0, "Seconds to keep the key unlocked (0 = until locked)")
	cmd.Flags().BoolVar(&o.noPassphrase, "no-passphrase", false, "Store the key unencrypted without prompting")
}

func NewGenerateCommand(app *App) *cobra.Command {
	var (
		keyType string
		bits    int
		opts    keyOptions
	)

	cmd := &cobra.Command{
		Use:   "generate <nickname>",
		Short: "Generate a new key pair",
		Long: `Generate a new key pair and store it encrypted under a passphrase.

Supported types are ed25519 (default), ecdsa (256, 384 or 521 bits) and rsa
(2048 to 8192 bits, default 3072).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := model.ParseKeyType(keyType)
			if !parsed.IsKnown() {
				return fmt.Errorf("unknown key type %q", keyType)
			}

			passphrase := ""
			if !opts.noPassphrase {
				var err error
				if passphrase, err = newPassphrase(app.Prompter, "passphrase"); err != nil {
					return err
				}
			}

			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			key, err := svc.Generate(cmd.Context(), application.GenerateRequest{
				Nickname:   args[0],
				KeyType:    parsed,
				Bits:       bits,
				Passphrase: passphrase,
				Startup:    opts.startup,
				ConfirmUse: opts.confirmUse,
				Lifetime:   opts.lifetime,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Generated %s (%s) with id %d\n",
				key.Nickname(), svc.Describe(key, app.Messages()), key.ID())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), svc.Fingerprint(key))
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyType, "type", "t", "ed25519", "Key type: ed25519, ecdsa or rsa")
	cmd.Flags().IntVarP(&bits, "bits", "b", 0, "Key size in bits (0 = type default)")
	opts.register(cmd)

	return cmd
}
