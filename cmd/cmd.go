// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// Flags keep parse state, so every command gets fresh instances.

func userFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User id to act as (operator access: bypasses session ownership)",
		Required: true,
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply pending migrations before serving",
				Value: true,
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles configuration, keys and schema management
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Run database migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "version",
				Usage:  "Show the current schema version",
				Action: r.SetupVersion,
			},
			{
				Name:   "keys",
				Usage:  "Generate a session secret key",
				Action: r.SetupKeys,
			},
		},
	}
}

// authCommand handles login and session refresh from the terminal
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in through the browser and print a session token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Address for the local OAuth callback server",
						Value: "127.0.0.1:8888",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultLoginTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh a user's Spotify tokens and print a new session token",
				Flags:  []cli.Flag{userFlag(), jsonFlag(), prettyFlag()},
				Action: r.AuthRefresh,
			},
		},
	}
}

// tagsCommand handles a user's tags
func tagsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Manage tags",
		Description: "Reads and writes the store directly as the --user given. " +
			"No session is checked; use the HTTP API for caller-scoped access.",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List a user's tags",
				Flags:  []cli.Flag{userFlag(), jsonFlag(), prettyFlag()},
				Action: r.TagsList,
			},
			{
				Name:      "create",
				Usage:     "Create a tag",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:  "color",
						Usage: "Tag colour as #rgb or #rrggbb",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.TagsCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a tag and detach it from every track",
				ArgsUsage: "<tag-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "tag-id"},
				},
				Flags:  []cli.Flag{userFlag()},
				Action: r.TagsDelete,
			},
			{
				Name:      "tracks",
				Usage:     "List the tracks carrying a tag",
				ArgsUsage: "<tag-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "tag-id"},
				},
				Flags:  []cli.Flag{userFlag(), jsonFlag(), prettyFlag()},
				Action: r.TagsTracks,
			},
			{
				Name:  "export",
				Usage: "Export every tag with its tracks",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, md, txt or json",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: moodring_tags.<format>)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent track lookups",
						Value: 4,
					},
				},
				Action: r.TagsExport,
			},
		},
	}
}

// tracksCommand handles the tags attached to a track
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Manage the tags on a track",
		Description: "Reads and writes the store directly as the --user given. " +
			"No session is checked; use the HTTP API for caller-scoped access.",
		Commands: []*cli.Command{
			{
				Name:      "tags",
				Usage:     "List the tags on a track",
				ArgsUsage: "<track-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Flags:  []cli.Flag{userFlag(), jsonFlag(), prettyFlag()},
				Action: r.TracksTags,
			},
			{
				Name:      "add",
				Usage:     "Attach a tag to a track",
				ArgsUsage: "<track-id> <tag-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
					&cli.StringArg{Name: "tag-id"},
				},
				Flags:  []cli.Flag{userFlag(), jsonFlag(), prettyFlag()},
				Action: r.TracksAdd,
			},
			{
				Name:      "remove",
				Usage:     "Detach a tag from a track",
				ArgsUsage: "<track-id> <tag-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
					&cli.StringArg{Name: "tag-id"},
				},
				Flags:  []cli.Flag{userFlag()},
				Action: r.TracksRemove,
			},
		},
	}
}
