package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/application"
	"github.com/dfryer1193/selfblog/shared/config"
	"github.com/dfryer1193/selfblog/shared/fsutil"
)

type InitCmd struct {
	StateDir string `help:"State directory (default: the config file's directory)" type:"path"`
	Force    bool   `help:"Overwrite an existing config file"`
}

func (i *InitCmd) Run(root *CLI) error {
	path := root.configPath()

	exists, err := fsutil.Exists(path)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if exists && !i.Force {
		log.Info().Str("path", path).Msg("Config file exists, keeping it")
		cfg, err = config.Load(path)
		if err != nil {
			return &ConfigError{Err: err}
		}
	} else {
		stateDir := i.StateDir
		if stateDir == "" {
			stateDir = filepath.Dir(path)
		}
		cfg = config.Default(stateDir)
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		root.printf("Wrote %s\n", path)
	}

	layout := application.Layout{
		StateDir:    cfg.StateDir,
		MarkdownDir: cfg.MarkdownDir,
		SiteDir:     cfg.SiteDir,
	}
	created, err := application.Scaffold(layout, cfg.Template)
	if err != nil {
		return err
	}
	for _, p := range created {
		root.printf("Created %s\n", p)
	}

	return nil
}
