// Package common wires the dependencies shared by all commands.
package common

import (
	"fmt"

	"github.com/jonesrussell/merchantcrawl/internal/config"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
)

// Deps holds the dependencies every command starts from.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewDeps loads configuration and creates the logger.
func NewDeps(cfgFile string, debug bool) (*Deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if debug {
		cfg.Logger.Level = "debug"
	}
	if cfg.App.Environment == "development" {
		cfg.Logger.Development = true
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}

// LoadSources reads the source definitions named by the configuration.
func (d *Deps) LoadSources() ([]sources.Source, error) {
	all, err := sources.Load(d.Config.App.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources from %s: %w", d.Config.App.SourcesFile, err)
	}
	return all, nil
}
