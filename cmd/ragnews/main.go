package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
	ExitNetworkError = 4
)

// logger is configured in the app's Before hook.
var logger = zerolog.Nop()

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ragnews",
		Usage:   "Ask questions of the RAG news assistant from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Backend base URL (default: $RAG_NEWS_API_BASE_URL or http://localhost:8000)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "Per-request timeout (0 disables; $RAG_NEWS_API_TIMEOUT applies when the flag is not set)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   getDefaultDBPath(),
				Usage:   "History database file path",
				EnvVars: []string{"RAG_NEWS_DB"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Settings file path (default: ~/.config/rag-news/config.yaml)",
				EnvVars: []string{"RAG_NEWS_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "pretty",
				Aliases: []string{"p"},
				Usage:   "Human-readable output instead of JSON",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log requests and diagnostics to stderr",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "health",
				Usage: "Check that the backend is reachable",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Keep probing until interrupted",
					},
					&cli.DurationFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Value:   30 * time.Second,
						Usage:   "Probe interval with --watch",
					},
				},
				Action: checkHealth,
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about the news",
				ArgsUsage: "<question>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-save",
						Usage: "Do not save this question to history",
					},
				},
				Action: ask,
			},
			{
				Name:  "sources",
				Usage: "List the backend's RSS sources",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Fetch every feed and report its status",
					},
				},
				Action: listSources,
				Subcommands: []*cli.Command{
					{
						Name:  "export",
						Usage: "Export sources to an OPML file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output file (default: stdout)",
							},
							&cli.BoolFlag{
								Name:  "titles",
								Usage: "Fetch feeds to include their titles",
							},
						},
						Action: exportSources,
					},
					{
						Name:      "diff",
						Usage:     "Compare an OPML file with the backend's sources",
						ArgsUsage: "<opml-file>",
						Action:    diffSources,
					},
				},
			},
			{
				Name:  "rebuild",
				Usage: "Rebuild the backend's search index",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Show the rebuild phases on stderr",
					},
				},
				Action: rebuildIndex,
			},
			{
				Name:   "history",
				Usage:  "Show saved questions and answers",
				Flags:  historyFlags(),
				Action: listHistory,
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List saved questions, newest first",
						Flags:  historyFlags(),
						Action: listHistory,
					},
					{
						Name:      "show",
						Usage:     "Show one history item",
						ArgsUsage: "<id>",
						Action:    showHistory,
					},
					{
						Name:      "delete",
						Usage:     "Delete history items",
						ArgsUsage: "<id>...",
						Action:    deleteHistory,
					},
					{
						Name:   "clear",
						Usage:  "Delete all history",
						Action: clearHistory,
					},
				},
			},
			{
				Name:   "settings",
				Usage:  "Show or change settings",
				Action: showSettings,
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the current settings",
						Action: showSettings,
					},
					{
						Name:      "set",
						Usage:     "Change a setting",
						ArgsUsage: "<key> <value>",
						Action:    setSetting,
					},
					{
						Name:   "reset",
						Usage:  "Restore default settings",
						Action: resetSettings,
					},
				},
			},
		},
	}
}

func historyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Value:   20,
			Usage:   "Maximum number of items to return",
		},
		&cli.IntFlag{
			Name:    "offset",
			Aliases: []string{"o"},
			Usage:   "Offset for pagination",
		},
		&cli.StringFlag{
			Name:    "search",
			Aliases: []string{"q"},
			Usage:   "Only items whose question or answer contains this text",
		},
		&cli.StringFlag{
			Name:    "since",
			Aliases: []string{"s"},
			Usage:   "Only items since duration (e.g., 12h, 7d, 2w, 3m, 1y)",
		},
	}
}

func setupLogger(c *cli.Context) error {
	level := zerolog.WarnLevel
	if c.Bool("verbose") {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr(c), TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rag-news.db"
	}
	return filepath.Join(home, ".config", "rag-news", "history.db")
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func outputJSON(c *cli.Context, v interface{}) error {
	encoder := json.NewEncoder(stdout(c))
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
