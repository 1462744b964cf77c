package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/robertmeta/rag-news-cli/model"
	"github.com/robertmeta/rag-news-cli/render"
	"github.com/robertmeta/rag-news-cli/store"
	"github.com/urfave/cli/v2"
)

func listHistory(c *cli.Context) error {
	opts, err := store.BuildQueryOptions(c.Int("limit"), c.Int("offset"), c.String("search"), c.String("since"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	settings, _, err := getSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	items, err := s.ListHistory(opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to list history: %v", err), ExitDataError)
	}
	if items == nil {
		items = []*model.HistoryItem{}
	}

	if wantPretty(c, settings) {
		for _, h := range items {
			fmt.Fprintf(stdout(c), "%4d  %s  %s\n", h.ID, h.AskedAt.Local().Format("2006-01-02 15:04"), h.Question)
		}
		return nil
	}
	return outputJSON(c, items)
}

func parseHistoryID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, cli.Exit(fmt.Sprintf("Invalid history ID: %s", arg), ExitUsageError)
	}
	return id, nil
}

func showHistory(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: ragnews history show <id>", ExitUsageError)
	}
	id, err := parseHistoryID(c.Args().Get(0))
	if err != nil {
		return err
	}

	settings, _, err := getSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	item, err := s.GetHistory(id)
	if errors.Is(err, store.ErrNotFound) {
		return cli.Exit(fmt.Sprintf("History item %d not found", id), ExitDataError)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get history item: %v", err), ExitDataError)
	}

	if wantPretty(c, settings) {
		fmt.Fprintf(stdout(c), "Q: %s\n\n", item.Question)
		return render.Answer(stdout(c), &model.AskResult{Answer: item.Answer, Citations: item.Citations},
			render.Options{ShowCitations: settings.Display.ShowCitations})
	}
	return outputJSON(c, item)
}

func deleteHistory(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: ragnews history delete <id>...", ExitUsageError)
	}

	ids := make([]int64, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		id, err := parseHistoryID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	deleted := []int64{}
	missing := []int64{}
	for _, id := range ids {
		err := s.DeleteHistory(id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			missing = append(missing, id)
		case err != nil:
			return cli.Exit(fmt.Sprintf("Failed to delete history item %d: %v", id, err), ExitDataError)
		default:
			deleted = append(deleted, id)
		}
	}

	if err := outputJSON(c, map[string]interface{}{
		"deleted": deleted,
		"missing": missing,
	}); err != nil {
		return err
	}
	if len(missing) > 0 {
		return cli.Exit(fmt.Sprintf("%d history item(s) not found", len(missing)), ExitDataError)
	}
	return nil
}

func clearHistory(c *cli.Context) error {
	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	removed, err := s.ClearHistory()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to clear history: %v", err), ExitDataError)
	}

	return outputJSON(c, map[string]interface{}{
		"success": true,
		"removed": removed,
	})
}
