package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the poker server"`
	Config  ConfigCmd        `cmd:"" help:"Print a commented default configuration"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("felt"),
		kong.Description("Multi-table No-Limit Hold'em server for bot clients"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
