package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/ericfisherdev/mykeypanel/cmd/mykeyctl/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	err := run()
	memguard.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := commands.NewApp(commands.NewTerminalPrompter(os.Stdin, os.Stderr))
	defer func() { _ = app.Close() }()

	root := commands.NewRootCommand(app)
	root.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	return root.Execute()
}
