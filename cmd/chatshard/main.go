// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/chatshard"
	"github.com/poiesic/chatshard/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "chatshard",
		Usage: "Chunked conversation transcript storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Conversation root directory (overrides CHATSHARD_ROOT)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Environment file to load settings from",
				Value: ".env",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List an owner's conversations",
				ArgsUsage: "OWNER",
				Action:    listCommand,
			},
			{
				Name:      "info",
				Usage:     "Show a conversation's layout and summary",
				ArgsUsage: "OWNER NAME",
				Action:    infoCommand,
			},
			{
				Name:      "tail",
				Usage:     "Print the last messages of a conversation",
				ArgsUsage: "OWNER NAME",
				Action:    tailCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Number of messages to print",
						Value:   20,
					},
					&cli.Int64Flag{
						Name:  "before",
						Usage: "Cursor returned by a previous page",
						Value: -1,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Find conversations containing every word of a query",
				ArgsUsage: "OWNER QUERY...",
				Action:    searchCommand,
			},
			{
				Name:      "import",
				Usage:     "Save a single-file transcript as a conversation",
				ArgsUsage: "OWNER NAME FILE",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite even when the integrity tag differs",
					},
				},
			},
			{
				Name:      "export",
				Usage:     "Write a conversation as a single-file transcript",
				ArgsUsage: "OWNER NAME",
				Action:    exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
			{
				Name:      "migrate",
				Usage:     "Convert a single-file conversation to the chunked layout",
				ArgsUsage: "OWNER NAME",
				Action:    migrateCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a conversation and all of its files",
				ArgsUsage: "OWNER NAME",
				Action:    deleteCommand,
			},
			{
				Name:      "rename",
				Usage:     "Rename a conversation",
				ArgsUsage: "OWNER OLD NEW",
				Action:    renameCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Migrate and verify every conversation under the root",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of conversations to process in each batch",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N conversations",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 100 * time.Millisecond,
					},
					&cli.BoolFlag{
						Name:  "rebuild",
						Usage: "Rebuild every index from its shards",
					},
				},
			},
		},
	}
}

// openStore loads configuration from the environment, applies the global
// flags and opens the store.
func openStore(c *cli.Context) (*chatshard.Store, error) {
	var opts []config.ConfigOption
	if root := c.String("root"); root != "" {
		opts = append(opts, config.WithRoot(root))
	}
	if c.IsSet("log-level") {
		opts = append(opts, config.WithLogLevel(c.String("log-level")))
	}

	cfg, err := config.Load(c.String("env-file"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := chatshard.NewStore(cfg, chatshard.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// requireArgs returns the first n positional arguments or a usage error.
func requireArgs(c *cli.Context, n int) ([]string, error) {
	if c.NArg() < n {
		return nil, fmt.Errorf("%s requires %d arguments: %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return c.Args().Slice(), nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
