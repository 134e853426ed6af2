// Package main is the LittleHelper command line client. It keeps a login
// session on disk and talks to the server's REST API.
package main

import (
	"cmp"
	"fmt"

	"github.com/alecthomas/kong"
)

var (
	version   string
	buildDate string
)

// CLI is the command tree.
type CLI struct {
	Globals

	Register RegisterCmd `cmd:"" help:"Create an account."`
	Login    LoginCmd    `cmd:"" help:"Log in and remember the session."`
	Logout   LogoutCmd   `cmd:"" help:"Forget the saved session."`
	Me       MeCmd       `cmd:"" help:"Show the logged in account."`
	Passwd   PasswdCmd   `cmd:"" help:"Change the account password."`
	Color    ColorCmd    `cmd:"" help:"Change the color profile."`
	Notes    NotesCmd    `cmd:"" help:"Manage notes."`
	Tasks    TasksCmd    `cmd:"" help:"Manage tasks and track time."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("littlehelper"),
		kong.Description("Notes and time-tracked tasks from the terminal."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
