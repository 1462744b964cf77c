package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robertmeta/rag-news-cli/client"
	"github.com/robertmeta/rag-news-cli/config"
	"github.com/robertmeta/rag-news-cli/feed"
	"github.com/robertmeta/rag-news-cli/model"
	"github.com/robertmeta/rag-news-cli/monitor"
	"github.com/robertmeta/rag-news-cli/opml"
	"github.com/robertmeta/rag-news-cli/rebuild"
	"github.com/robertmeta/rag-news-cli/render"
	"github.com/robertmeta/rag-news-cli/store"
	"github.com/urfave/cli/v2"
)

// lastRebuildKey records when the index was last rebuilt from this machine.
const lastRebuildKey = "last-index-rebuild"

// clientConfig resolves the backend configuration: flags win over the
// environment, and the --timeout default applies when neither sets one.
func clientConfig(c *cli.Context) (client.Config, error) {
	cfg, err := client.ConfigFromEnv()
	if err != nil {
		return client.Config{}, err
	}

	if c.IsSet("api-url") {
		cfg.BaseURL = c.String("api-url")
	}
	if c.IsSet("timeout") || cfg.Timeout == 0 {
		cfg.Timeout = c.Duration("timeout")
	}
	return cfg, nil
}

func getClient(c *cli.Context) (*client.Client, error) {
	cfg, err := clientConfig(c)
	if err != nil {
		return nil, err
	}
	return client.New(cfg)
}

// requestOptions tags every request with a fresh request ID so it can be
// matched against backend logs.
func requestOptions(op string) []client.RequestOption {
	id := uuid.NewString()
	logger.Debug().Str("op", op).Str("request_id", id).Msg("sending request")
	return []client.RequestOption{client.WithHeader("X-Request-ID", id)}
}

// backendExit converts a client error into an exit error with a matching code.
func backendExit(op string, err error) error {
	var ce client.Error
	if !errors.As(err, &ce) {
		return cli.Exit(fmt.Sprintf("%s failed: %v", op, err), ExitGeneralError)
	}

	ev := logger.Warn().Str("op", op).Str("kind", ce.Kind().String()).Int("status", ce.Status())
	var ne *client.NetworkError
	if errors.As(err, &ne) {
		ev = ev.Str("code", ne.Code()).AnErr("cause", ne.Unwrap())
	}
	ev.Msg(ce.Error())

	code := ExitDataError
	switch ce.Kind() {
	case client.KindValidation:
		code = ExitUsageError
	case client.KindNetwork:
		code = ExitNetworkError
	}

	if ce.Status() > 0 {
		return cli.Exit(fmt.Sprintf("%s failed (status %d): %s", op, ce.Status(), ce.Error()), code)
	}
	return cli.Exit(fmt.Sprintf("%s failed: %s", op, ce.Error()), code)
}

func getSettings(c *cli.Context) (*config.Settings, string, error) {
	path := config.ResolvePath(c.String("config"))
	settings, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return settings, path, nil
}

func wantPretty(c *cli.Context, settings *config.Settings) bool {
	return c.Bool("pretty") || settings.Display.Pretty
}

// signalContext is cancelled on interrupt so long-running commands stop cleanly.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

type healthOutput struct {
	monitor.Result
	BaseURL          string     `json:"base_url"`
	LastIndexRebuild *time.Time `json:"last_index_rebuild,omitempty"`
	IndexFreshness   string     `json:"index_freshness"`
}

func checkHealth(c *cli.Context) error {
	api, err := getClient(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	settings, _, err := getSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	out := healthOutput{BaseURL: api.BaseURL(), IndexFreshness: feed.FreshnessUnknown}
	if s, ok := existingStore(c); ok {
		var rebuilt time.Time
		if found, err := s.Get(lastRebuildKey, &rebuilt); err == nil && found {
			out.LastIndexRebuild = &rebuilt
			out.IndexFreshness = feed.Freshness(rebuilt, time.Now())
		}
		s.Close()
	}

	emit := func(r monitor.Result) {
		out.Result = r
		if !r.Healthy {
			logger.Warn().Err(r.Err).Str("base_url", out.BaseURL).Msg("API health check failed")
		}
		if wantPretty(c, settings) {
			state := "healthy"
			if !r.Healthy {
				state = "unhealthy: " + r.Error
			}
			fmt.Fprintf(stdout(c), "%s  %s  %s (index %s)\n", r.CheckedAt.Format(time.Kitchen), out.BaseURL, state, out.IndexFreshness)
			return
		}
		if err := outputJSON(c, out); err != nil {
			logger.Warn().Err(err).Msg("failed to write health result")
		}
	}

	if !c.Bool("watch") {
		r := monitor.Check(c.Context, api, requestOptions("health")...)
		emit(r)
		if !r.Healthy {
			return backendExit("health check", r.Err)
		}
		return nil
	}

	ctx, stop := signalContext(c)
	defer stop()

	opts := func() []client.RequestOption { return requestOptions("health") }
	err = monitor.Watch(ctx, api, c.Duration("interval"), opts, emit)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func ask(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: ragnews ask <question>...", ExitUsageError)
	}
	question := strings.Join(c.Args().Slice(), " ")

	api, err := getClient(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	settings, _, err := getSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	result, err := api.Ask(c.Context, question, requestOptions("ask")...)
	if err != nil {
		return backendExit("ask", err)
	}

	if missing := result.UnresolvedMarkers(); len(missing) > 0 {
		logger.Warn().Ints("markers", missing).Msg("answer cites sources that were not returned")
	}

	if settings.History.AutoSave && !c.Bool("no-save") {
		if err := saveToHistory(c, settings, question, result); err != nil {
			logger.Warn().Err(err).Msg("failed to save question to history")
		}
	}

	if wantPretty(c, settings) {
		return render.Answer(stdout(c), result, render.Options{ShowCitations: settings.Display.ShowCitations})
	}
	return outputJSON(c, result)
}

func saveToHistory(c *cli.Context, settings *config.Settings, question string, result *model.AskResult) error {
	s, err := getStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	item := &model.HistoryItem{
		Question:  strings.TrimSpace(question),
		Answer:    result.Answer,
		Citations: result.Citations,
	}
	if err := s.SaveHistory(item); err != nil {
		return err
	}

	removed, err := s.PruneHistory(settings.History.MaxItems)
	if err != nil {
		return err
	}
	logger.Debug().Int64("id", item.ID).Int64("pruned", removed).Msg("saved to history")
	return nil
}

func listSources(c *cli.Context) error {
	api, err := getClient(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	settings, _, err := getSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	sources, err := api.ListSources(c.Context, requestOptions("sources")...)
	if err != nil {
		return backendExit("list sources", err)
	}

	var statuses []feed.SourceStatus
	if c.Bool("check") {
		ctx, stop := signalContext(c)
		defer stop()
		statuses = feed.NewProber().ProbeAll(ctx, sources.RSS)
	} else {
		for _, u := range sources.RSS {
			statuses = append(statuses, feed.SourceStatus{URL: u})
		}
	}

	if wantPretty(c, settings) {
		return render.Sources(stdout(c), statuses, time.Now())
	}

	if !c.Bool("check") {
		return outputJSON(c, sources)
	}

	active := 0
	for _, s := range statuses {
		if s.Status == feed.StatusActive {
			active++
		}
	}
	return outputJSON(c, map[string]interface{}{
		"total":   len(statuses),
		"active":  active,
		"errors":  len(statuses) - active,
		"sources": statuses,
	})
}

func exportSources(c *cli.Context) error {
	api, err := getClient(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	sources, err := api.ListSources(c.Context, requestOptions("sources")...)
	if err != nil {
		return backendExit("list sources", err)
	}

	entries := make([]opml.Source, 0, len(sources.RSS))
	if c.Bool("titles") {
		for _, s := range feed.NewProber().ProbeAll(c.Context, sources.RSS) {
			entries = append(entries, opml.Source{URL: s.URL, Title: s.Title})
		}
	} else {
		for _, u := range sources.RSS {
			entries = append(entries, opml.Source{URL: u})
		}
	}

	outputPath := c.String("output")
	if outputPath == "" {
		if err := opml.Generate(stdout(c), "rag-news sources", entries); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
		}
		return nil
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
	}
	defer file.Close()

	if err := opml.Generate(file, "rag-news sources", entries); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
	}

	return outputJSON(c, map[string]interface{}{
		"success": true,
		"file":    outputPath,
		"count":   len(entries),
	})
}

func diffSources(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: ragnews sources diff <opml-file>", ExitUsageError)
	}

	file, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
	}
	defer file.Close()

	local, err := opml.Parse(file)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	api, err := getClient(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	sources, err := api.ListSources(c.Context, requestOptions("sources")...)
	if err != nil {
		return backendExit("list sources", err)
	}

	d := opml.Diff(local, sources.RSS)
	return outputJSON(c, map[string]interface{}{
		"in_sync":     d.InSync(),
		"only_local":  d.OnlyLocal,
		"only_remote": d.OnlyRemote,
		"shared":      d.Shared,
	})
}

func rebuildIndex(c *cli.Context) error {
	api, err := getClient(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	ctx, stop := signalContext(c)
	defer stop()

	var result *model.RebuildResult
	if c.Bool("progress") {
		runner := rebuild.NewRunner(func(p rebuild.Progress) {
			fmt.Fprintf(stderr(c), "[%3.0f%%] %s\n", p.Percent, p.Step)
		})
		result, err = runner.Run(ctx, api, requestOptions("rebuild")...)
	} else {
		result, err = api.RebuildIndex(ctx, requestOptions("rebuild")...)
	}
	if errors.Is(err, context.Canceled) {
		return cli.Exit("rebuild cancelled", ExitGeneralError)
	}
	if err != nil {
		return backendExit("rebuild", err)
	}

	if s, err := getStore(c); err == nil {
		if err := s.Put(lastRebuildKey, time.Now()); err != nil {
			logger.Warn().Err(err).Msg("failed to record rebuild time")
		}
		s.Close()
	} else {
		logger.Warn().Err(err).Msg("failed to open history database")
	}

	return outputJSON(c, result)
}

// existingStore opens the history database only if it is already on disk.
func existingStore(c *cli.Context) (*store.Store, bool) {
	dbPath := c.String("db")
	if dbPath != ":memory:" {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, false
		}
	}

	s, err := store.New(dbPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", dbPath).Msg("failed to open history database")
		return nil, false
	}
	return s, true
}

func getStore(c *cli.Context) (*store.Store, error) {
	dbPath := c.String("db")

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}
