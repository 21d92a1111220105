package config

import (
	"flag"
	"os"

	"github.com/mkarpov/keystash/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-e string   base URL of the auth server
//	-k string   api key for the auth server
//	-d string   path to the local stash database
//	-app string application id for new logins
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-e", "-k", "-d", "-app"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointURL, "e", cfg.ServerEndpointURL, "auth server base URL")
	fs.StringVar(&cfg.APIKey, "k", cfg.APIKey, "auth server api key")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path to the stash database")
	fs.StringVar(&cfg.AppID, "app", cfg.AppID, "application id")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
