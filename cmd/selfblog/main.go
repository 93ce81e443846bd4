package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/cmd/selfblog/commands"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("selfblog"),
		kong.Description("Write, publish and serve a static blog from markdown drafts."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(commands.ExitCode(err))
	}
}
