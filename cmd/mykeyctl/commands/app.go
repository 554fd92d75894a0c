// Package commands implements the mykeyctl subcommands. Every command works
// directly on the key database used by the server.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mykeypanel/internal/adapter/driven/i18n"
	"github.com/ericfisherdev/mykeypanel/internal/adapter/driven/sshkey"
	sqliteadapter "github.com/ericfisherdev/mykeypanel/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/mykeypanel/internal/application"
	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// App holds the state shared by all subcommands. The database is opened on
// first use so that --help and completion never touch it.
type App struct {
	DBPath     string
	Language   string
	KeyComment string
	Prompter   Prompter

	db        *sqliteadapter.DB
	svc       *application.PubkeyService
	localizer driven.Localizer
}

// NewApp creates an App with defaults taken from the MYKEYPANEL_ environment.
func NewApp(prompter Prompter) *App {
	app := &App{
		DBPath:     "mykeypanel.db",
		Language:   os.Getenv("LANG"),
		KeyComment: os.Getenv("MYKEYPANEL_KEY_COMMENT"),
		Prompter:   prompter,
	}
	if v, ok := os.LookupEnv("MYKEYPANEL_DB_PATH"); ok && v != "" {
		app.DBPath = v
	}
	return app
}

// Service opens the database, runs migrations and wires the key service.
func (a *App) Service(ctx context.Context) (*application.PubkeyService, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	db, err := sqliteadapter.NewDB(ctx, a.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.DBPath, err)
	}
	if _, err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	catalog, err := i18n.NewCatalog("en")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store := sqliteadapter.NewPubkeyRepo(db)
	codec := sshkey.NewCodec(a.KeyComment)
	keyring := application.NewKeyring(store, codec, nil)

	a.db = db
	a.localizer = catalog
	a.svc = application.NewPubkeyService(store, codec, codec, keyring, nil)
	return a.svc, nil
}

// Messages returns the formatter for the configured language.
func (a *App) Messages() model.MessageFormatter {
	return a.localizer.Formatter(a.Language)
}

// Close releases the database, if it was opened.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db, a.svc = nil, nil
	return err
}

// NewRootCommand builds the mykeyctl command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "mykeyctl",
		Short: "Manage the SSH keys stored by mykeypanel",
		Long: `mykeyctl lists, generates, imports and re-encrypts the SSH keys kept in a
mykeypanel database. Passphrases are read from the terminal without echo.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&app.DBPath, "db", app.DBPath, "Key database path (env MYKEYPANEL_DB_PATH)")
	root.PersistentFlags().StringVar(&app.Language, "lang", app.Language, "Language for key descriptions")

	root.AddCommand(
		NewListCommand(app),
		NewGenerateCommand(app),
		NewImportCommand(app),
		NewAddSecurityKeyCommand(app),
		NewPasswdCommand(app),
		NewAuthorizedKeyCommand(app),
		NewDeleteCommand(app),
	)

	return root
}

// resolveKey looks a key up by numeric id first, then by nickname.
func resolveKey(ctx context.Context, svc *application.PubkeyService, ref string) (*model.Pubkey, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		key, err := svc.Get(ctx, id)
		if err == nil || !errors.Is(err, driven.ErrPubkeyNotFound) {
			return key, err
		}
	}
	key, err := svc.GetByNickname(ctx, ref)
	if errors.Is(err, driven.ErrPubkeyNotFound) {
		return nil, fmt.Errorf("no key with id or nickname %q", ref)
	}
	return key, err
}
