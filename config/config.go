// Package config reads and writes the rag-news-cli settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	History HistorySettings `yaml:"history" json:"history"`
	Display DisplaySettings `yaml:"display" json:"display"`
	System  SystemConfig    `yaml:"system" json:"system"`
}

type HistorySettings struct {
	AutoSave bool `yaml:"auto_save" json:"auto_save"`
	MaxItems int  `yaml:"max_items" json:"max_items"`
}

type DisplaySettings struct {
	ShowCitations bool `yaml:"show_citations" json:"show_citations"`
	Pretty        bool `yaml:"pretty" json:"pretty"`
}

// SystemConfig describes the backend's retrieval pipeline. It is shown to the
// user for reference and never sent to the backend.
type SystemConfig struct {
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	ChunkSize      int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap" json:"chunk_overlap"`
	TopK           int    `yaml:"top_k" json:"top_k"`
	FetchK         int    `yaml:"fetch_k" json:"fetch_k"`
	Model          string `yaml:"model" json:"model"`
}

// Default returns the settings used when no file exists.
func Default() *Settings {
	return &Settings{
		History: HistorySettings{
			AutoSave: true,
			MaxItems: 100,
		},
		Display: DisplaySettings{
			ShowCitations: true,
		},
		System: SystemConfig{
			EmbeddingModel: "BAAI/bge-small-en-v1.5",
			ChunkSize:      1000,
			ChunkOverlap:   200,
			TopK:           5,
			FetchK:         20,
			Model:          "deepseek/deepseek-chat",
		},
	}
}

// Load reads settings from path. A missing file yields Default().
// Keys absent from the file keep their default values.
func Load(path string) (*Settings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.History.MaxItems <= 0 {
		cfg.History.MaxItems = Default().History.MaxItems
	}

	return cfg, nil
}

// Save writes settings to path, creating the directory if needed.
func Save(cfg *Settings, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Keys lists the user-editable settings accepted by Set.
var Keys = []string{"history.auto_save", "history.max_items", "display.show_citations", "display.pretty"}

// Set updates one user-editable setting from its string form.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "history.auto_save":
		return setBool(&s.History.AutoSave, key, value)
	case "history.max_items":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		s.History.MaxItems = n
		return nil
	case "display.show_citations":
		return setBool(&s.Display.ShowCitations, key, value)
	case "display.pretty":
		return setBool(&s.Display.Pretty, key, value)
	default:
		return fmt.Errorf("unknown setting %q (editable: %v)", key, Keys)
	}
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false, got %q", key, value)
	}
	*dst = b
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ResolvePath returns path with a leading ~ expanded, or the default path when empty.
func ResolvePath(path string) string {
	if path == "" {
		return DefaultConfigPath()
	}
	return expandPath(path)
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "rag-news", "config.yaml")
}
