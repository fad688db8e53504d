package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are the flags every command accepts.
type Globals struct {
	Config   string `short:"c" default:"umabot.hcl" help:"Path to HCL configuration file (missing file means defaults)"`
	LogLevel string `short:"l" help:"Log level: debug, info, warn, error (overrides config)"`
	LogJSON  bool   `name:"log-json" help:"Log as JSON (overrides config)"`
	LogFile  string `help:"Log to this file instead of stderr (overrides config)"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Run      RunCmd           `cmd:"" help:"Train a career against a capture agent"`
	Simulate SimulateCmd      `cmd:"" help:"Train simulated careers"`
	Configs  ConfigCmd        `cmd:"" name:"config" help:"Inspect or create the configuration file"`
	Journal  JournalCmd       `cmd:"" help:"Browse recorded runs"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("umabot"),
		kong.Description("Career training bot: reads the screen, decides, acts, verifies"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
