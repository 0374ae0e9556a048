package main

import (
	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/config"
	"github.com/lox/siteweather/internal/logging"
)

type CLI struct {
	config.Config `embed:""`

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the API server and the collection/check scheduler."`
	Collect   CollectCmd   `cmd:"" help:"Collect weather for every known location once and exit."`
	Check     CheckCmd     `cmd:"" help:"Run alert checks once and exit."`
	TestEmail TestEmailCmd `cmd:"" name:"test-email" help:"Send a test email."`
	Migrate   MigrateCmd   `cmd:"" help:"Apply database migrations and exit."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("siteweather"),
		kong.Description("Weather alerts for construction jobsites."),
		kong.UsageOnError(),
	)

	if err := cli.Config.Validate(); err != nil {
		kctx.Fatalf("%v", err)
	}
	if _, err := logging.New(cli.LogDir, cli.LogLevel, cli.LogTee); err != nil {
		kctx.Fatalf("logging: %v", err)
	}
	defer zap.S().Sync()

	kctx.FatalIfErrorf(kctx.Run(&cli.Config))
}
