// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the login, callback and data endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.host and server.port",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the example configuration to the --config path",
				Action: r.SetupConfig,
			},
		},
	}
}

// tokenCommand inspects and removes stored provider tokens
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "token",
		Aliases: []string{"tokens"},
		Usage:   "Manage linked provider tokens",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show which providers are linked and when their tokens expire",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.TokenStatus,
			},
			{
				Name:  "unlink",
				Usage: "Delete the stored token of a provider",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "provider",
					},
				},
				Action: r.TokenUnlink,
			},
		},
	}
}

// stateCommand maintains state codes
func stateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Maintain login state codes",
		Commands: []*cli.Command{
			{
				Name:   "purge",
				Usage:  "Delete expired state codes",
				Action: r.StatePurge,
			},
		},
	}
}

// linkCommand starts a login from the terminal
func linkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Open the provider login page of a running server in the browser",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "provider",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "print",
				Usage: "Print the login URL instead of opening it",
			},
		},
		Action: r.Link,
	}
}

// exportCommand renders a linked provider's listing from the terminal
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export Spotify top tracks or Google Photos albums",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "listing",
				UsageText: "tracks or albums",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (csv, markdown, text, json)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.Export,
	}
}
