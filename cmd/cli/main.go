package main

import (
	"context"
	"log"
	"os"

	"github.com/mkarpov/keystash/internal/buildinfo"
	"github.com/mkarpov/keystash/internal/cli"
	"github.com/mkarpov/keystash/internal/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	code := app.Run(ctx)
	_ = app.Close()
	os.Exit(code)
}
