package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// keyRow is one key as printed by list.
type keyRow struct {
	ID          int64  `json:"id" yaml:"id"`
	Nickname    string `json:"nickname" yaml:"nickname"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Encrypted   bool   `json:"encrypted" yaml:"encrypted"`
	Startup     bool   `json:"startup" yaml:"startup"`
	ConfirmUse  bool   `json:"confirm_use" yaml:"confirm_use"`
	Lifetime    int    `json:"lifetime" yaml:"lifetime"`
	SecurityKey bool   `json:"security_key" yaml:"security_key"`
}

func NewListCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			keys, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}

			messages := app.Messages()
			rows := make([]keyRow, 0, len(keys))
			for _, key := range keys {
				rows = append(rows, keyRow{
					ID:          key.ID(),
					Nickname:    key.Nickname(),
					Type:        key.KeyType().String(),
					Description: svc.Describe(key, messages),
					Fingerprint: svc.Fingerprint(key),
					Encrypted:   key.Encrypted(),
					Startup:     key.Startup(),
					ConfirmUse:  key.ConfirmUse(),
					Lifetime:    key.Lifetime(),
					SecurityKey: key.SecurityKey(),
				})
			}

			return writeRows(cmd.OutOrStdout(), output, rows)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")

	return cmd
}

func writeRows(w io.Writer, format string, rows []keyRow) error {
	switch format {
	case "table":
		if len(rows) == 0 {
			_, _ = fmt.Fprintln(w, "No keys stored")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(tw, "ID\tNICKNAME\tDESCRIPTION\tSTARTUP\tFINGERPRINT\n")
		for _, r := range rows {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Nickname, r.Description, yesNo(r.Startup), r.Fingerprint)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
