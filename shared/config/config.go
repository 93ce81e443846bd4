package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dfryer1193/selfblog/shared/fsutil"
)

const (
	DefaultTitleClass       = "title_text_main"
	DefaultDescriptionClass = "description_text_main"
	DefaultListenAddr       = ":8080"
	DefaultPostsPrefix      = "posts"

	defaultStateDirName = ".selfblog"
	configFileName      = "config.yaml"
	envFileName         = ".env"
	dbFileName          = "selfblog.db"
)

// Classes are the CSS classes applied to generated index markup.
type Classes struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

// GitHub names the remote repository post sources are synced from.
type GitHub struct {
	Owner       string `yaml:"owner,omitempty"`
	Repo        string `yaml:"repo,omitempty"`
	Token       string `yaml:"token,omitempty"`
	PostsPrefix string `yaml:"posts_prefix,omitempty"`
}

// Enabled reports whether source sync is configured.
func (g GitHub) Enabled() bool {
	return g.Owner != "" && g.Repo != ""
}

type Config struct {
	StateDir    string  `yaml:"state_dir"`
	MarkdownDir string  `yaml:"markdown_dir"`
	SiteDir     string  `yaml:"site_dir"`
	Template    string  `yaml:"template"`
	Classes     Classes `yaml:"classes"`
	DBPath      string  `yaml:"db_path,omitempty"`
	Server      Server  `yaml:"server"`
	GitHub      GitHub  `yaml:"github,omitempty"`
}

// DefaultStateDir is ~/.selfblog, or .selfblog when the home directory is
// unknown.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultStateDirName
	}
	return filepath.Join(home, defaultStateDirName)
}

// DefaultPath is the config file inside the default state directory.
func DefaultPath() string {
	return filepath.Join(DefaultStateDir(), configFileName)
}

// Default lays every artifact out below stateDir.
func Default(stateDir string) *Config {
	return &Config{
		StateDir:    stateDir,
		MarkdownDir: filepath.Join(stateDir, "markdown"),
		SiteDir:     filepath.Join(stateDir, "site"),
		Template:    filepath.Join(stateDir, "template.html"),
		Classes: Classes{
			Title:       DefaultTitleClass,
			Description: DefaultDescriptionClass,
		},
		Server: Server{Listen: DefaultListenAddr},
		GitHub: GitHub{PostsPrefix: DefaultPostsPrefix},
	}
}

// Load reads the config file at path (DefaultPath when empty), then applies
// the .env file of the state directory and environment overrides. The result
// is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found (run `selfblog init`): %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default(DefaultStateDir())
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg.StateDir = resolvePath(base, cfg.StateDir)

	if err := loadEnvFile(filepath.Join(cfg.StateDir, envFileName)); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.resolvePaths(base)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg as YAML to path.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StateDir, validation.Required),
		validation.Field(&c.MarkdownDir, validation.Required),
		validation.Field(&c.SiteDir, validation.Required),
		validation.Field(&c.Template, validation.Required),
		validation.Field(&c.Classes),
		validation.Field(&c.Server),
		validation.Field(&c.GitHub),
	)
}

func (c Classes) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required, validation.By(noWhitespace)),
		validation.Field(&c.Description, validation.Required, validation.By(noWhitespace)),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Listen, validation.Required),
	)
}

func (g GitHub) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Owner, validation.When(g.Repo != "", validation.Required)),
		validation.Field(&g.Repo, validation.When(g.Owner != "", validation.Required)),
	)
}

func noWhitespace(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, " \t\n\"") {
		return validation.NewError("validation_class_name", "must be a single class name")
	}
	return nil
}

// loadEnvFile loads a .env file without overriding variables already set.
func loadEnvFile(path string) error {
	exists, err := fsutil.Exists(path)
	if err != nil || !exists {
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"SELFBLOG_STATE_DIR", &c.StateDir},
		{"SELFBLOG_MARKDOWN_DIR", &c.MarkdownDir},
		{"SELFBLOG_SITE_DIR", &c.SiteDir},
		{"SELFBLOG_TEMPLATE", &c.Template},
		{"SELFBLOG_DB_PATH", &c.DBPath},
		{"SELFBLOG_LISTEN_ADDR", &c.Server.Listen},
		{"WEBHOOK_SECRET", &c.Server.WebhookSecret},
		{"SELFBLOG_GITHUB_OWNER", &c.GitHub.Owner},
		{"SELFBLOG_GITHUB_REPO", &c.GitHub.Repo},
		{"SELFBLOG_GITHUB_TOKEN", &c.GitHub.Token},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

func (c *Config) resolvePaths(base string) {
	c.StateDir = resolvePath(base, c.StateDir)
	c.MarkdownDir = resolvePath(base, c.MarkdownDir)
	c.SiteDir = resolvePath(base, c.SiteDir)
	c.Template = resolvePath(base, c.Template)
	if c.DBPath != "" {
		c.DBPath = resolvePath(base, c.DBPath)
	}
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" && c.StateDir != "" {
		c.DBPath = filepath.Join(c.StateDir, dbFileName)
	}
	if c.GitHub.PostsPrefix == "" {
		c.GitHub.PostsPrefix = DefaultPostsPrefix
	}
}

// resolvePath expands a leading ~ and makes relative paths relative to base.
func resolvePath(base, p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}
