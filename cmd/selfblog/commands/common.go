package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/application"
	"github.com/dfryer1193/selfblog/blog/persistence"
	"github.com/dfryer1193/selfblog/shared/config"
	"github.com/dfryer1193/selfblog/shared/db/sqlite"
)

// CLI definition & global flags.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path (default ~/.selfblog/config.yaml)" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Init    InitCmd    `cmd:"" help:"Create the state directory, config, template and index page"`
	New     NewCmd     `cmd:"" help:"Open a new draft"`
	Ready   ReadyCmd   `cmd:"" help:"Render the open draft and mark it ready"`
	Publish PublishCmd `cmd:"" help:"Publish the ready draft and link it from the index"`
	Update  UpdateCmd  `cmd:"" help:"Re-render a published post from its source"`
	Delete  DeleteCmd  `cmd:"" help:"Unpublish a post, keeping its source"`
	Status  StatusCmd  `cmd:"" help:"Show the state of the draft cycle"`
	List    ListCmd    `cmd:"" help:"List published posts"`
	Preview PreviewCmd `cmd:"" help:"Render the open draft to a preview page"`
	Watch   WatchCmd   `cmd:"" help:"Re-render the preview whenever the draft changes"`
	Serve   ServeCmd   `cmd:"" help:"Serve the site, posts API and source webhook"`

	// Out receives command output; stdout when nil.
	Out io.Writer `kong:"-"`
}

// AfterApply runs after flag parsing; set up logging once.
func (c *CLI) AfterApply() error {
	level := zerolog.InfoLevel
	if c.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if c.Out == nil {
		c.Out = os.Stdout
	}
	return nil
}

func (c *CLI) configPath() string {
	if c.Config != "" {
		return c.Config
	}
	return config.DefaultPath()
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

// app is the engine wired to one loaded configuration.
type app struct {
	cfg     *config.Config
	engine  *application.Engine
	catalog *sqlite.SQLiteDB
}

// open loads the configuration and wires the engine. The catalog is
// optional: when it cannot be opened the engine runs without it.
func (c *CLI) open(opts ...application.EngineOption) (*app, error) {
	cfg, err := config.Load(c.configPath())
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	layout := application.Layout{
		StateDir:    cfg.StateDir,
		MarkdownDir: cfg.MarkdownDir,
		SiteDir:     cfg.SiteDir,
	}

	a := &app{cfg: cfg}

	catalog := sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(cfg.DBPath))
	if err := catalog.Connect(); err != nil {
		log.Warn().Err(err).Str("path", cfg.DBPath).Msg("Post catalog unavailable, continuing without it")
	} else {
		a.catalog = catalog
		opts = append([]application.EngineOption{application.WithCatalog(persistence.NewPostRepository(catalog.DB()))}, opts...)
	}

	a.engine = application.NewEngine(
		layout,
		application.NewMarkdownRenderer(),
		application.NewTemplateCompositor(cfg.Template),
		application.NewIndexPatcher(layout.IndexPath(), application.CSSClasses{
			Title:       cfg.Classes.Title,
			Description: cfg.Classes.Description,
		}),
		persistence.NewMetadataStore(),
		opts...,
	)

	return a, nil
}

func (a *app) Close() {
	if a.catalog == nil {
		return
	}
	if err := a.catalog.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close post catalog")
	}
}

// relPath shortens path relative to the working directory when possible.
func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || len(rel) >= len(path) {
		return path
	}
	return rel
}
