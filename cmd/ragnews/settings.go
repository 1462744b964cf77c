package main

import (
	"fmt"

	"github.com/robertmeta/rag-news-cli/config"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func showSettings(c *cli.Context) error {
	settings, path, err := getSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	if wantPretty(c, settings) {
		data, err := yaml.Marshal(settings)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		fmt.Fprintf(stdout(c), "# %s\n%s", path, data)
		return nil
	}
	return outputJSON(c, settings)
}

func setSetting(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("Usage: ragnews settings set <key> <value>", ExitUsageError)
	}

	settings, path, err := getSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	key, value := c.Args().Get(0), c.Args().Get(1)
	if err := settings.Set(key, value); err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	if err := config.Save(settings, path); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save settings: %v", err), ExitDataError)
	}
	logger.Debug().Str("key", key).Str("value", value).Str("path", path).Msg("setting updated")

	return outputJSON(c, settings)
}

func resetSettings(c *cli.Context) error {
	path := config.ResolvePath(c.String("config"))
	settings := config.Default()

	if err := config.Save(settings, path); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save settings: %v", err), ExitDataError)
	}
	return outputJSON(c, settings)
}
