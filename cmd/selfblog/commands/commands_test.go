package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/selfblog/blog/domain"
	"github.com/dfryer1193/selfblog/internal/metrics"
)

var envKeys = []string{
	"SELFBLOG_STATE_DIR", "SELFBLOG_MARKDOWN_DIR", "SELFBLOG_SITE_DIR", "SELFBLOG_TEMPLATE",
	"SELFBLOG_DB_PATH", "SELFBLOG_LISTEN_ADDR", "WEBHOOK_SECRET",
	"SELFBLOG_GITHUB_OWNER", "SELFBLOG_GITHUB_REPO", "SELFBLOG_GITHUB_TOKEN",
}

type harness struct {
	configPath string
	stateDir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return &harness{
		configPath: filepath.Join(dir, "config.yaml"),
		stateDir:   dir,
	}
}

// run parses args the way main does and returns the command output.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cli := CLI{Out: &out}

	parser, err := kong.New(&cli, kong.Name("selfblog"), kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }))
	require.NoError(t, err)

	kctx, err := parser.Parse(append([]string{"-c", h.configPath}, args...))
	require.NoError(t, err)

	err = kctx.Run(&cli)
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, "selfblog %s", strings.Join(args, " "))
	return out
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", &ConfigError{Err: errors.New("bad")}, ExitConfig},
		{"conflict", &domain.ConflictError{Op: "create", Reason: "open"}, ExitConflict},
		{"not found", fmt.Errorf("wrapped: %w", &domain.NotFoundError{Op: "update"}), ExitNotFound},
		{"template", &domain.TemplateError{Path: "t.html", Err: errors.New("missing")}, ExitTemplate},
		{"io", &domain.IOError{Op: "publish", Path: "x", Err: errors.New("disk")}, ExitIO},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestInit(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "init")
	assert.Contains(t, out, "Wrote "+h.configPath)
	assert.FileExists(t, filepath.Join(h.stateDir, "template.html"))
	assert.FileExists(t, filepath.Join(h.stateDir, "site", "index.html"))
	assert.DirExists(t, filepath.Join(h.stateDir, "markdown"))

	// A second run keeps the config and creates nothing.
	out = h.mustRun(t, "init")
	assert.NotContains(t, out, "Wrote")
	assert.NotContains(t, out, "Created")
}

func TestDraftCycle(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "init")

	out := h.mustRun(t, "new", "Hello World", "A first post")
	assert.Contains(t, out, "Opened draft 1")

	source := filepath.Join(h.stateDir, "markdown", "post-1.md")
	require.NoError(t, os.WriteFile(source, []byte("Some *words*.\n"), 0644))

	_, err := h.run(t, "new", "Another")
	assert.Equal(t, ExitConflict, ExitCode(err))

	out = h.mustRun(t, "status")
	assert.Contains(t, out, "State: draft-open")
	assert.Contains(t, out, `Draft: 1 "Hello World"`)

	out = h.mustRun(t, "preview")
	assert.FileExists(t, strings.TrimSpace(out))

	h.mustRun(t, "ready")
	out = h.mustRun(t, "status")
	assert.Contains(t, out, "State: ready")

	out = h.mustRun(t, "publish")
	assert.Contains(t, out, "Published post 1")

	page, err := os.ReadFile(filepath.Join(h.stateDir, "site", "posts", "post-1.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<em>words</em>")

	out = h.mustRun(t, "status")
	assert.Contains(t, out, "State: idle")

	out = h.mustRun(t, "list")
	assert.Contains(t, out, "Hello World")
	assert.Contains(t, out, "A first post")

	h.mustRun(t, "update", "1")

	out = h.mustRun(t, "delete", "1")
	assert.Contains(t, out, "Unpublished post 1")
	assert.FileExists(t, source)

	out = h.mustRun(t, "list")
	assert.Contains(t, out, "No published posts")

	_, err = h.run(t, "update", "1")
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestCommandsWithoutDraft(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "init")

	for _, cmd := range []string{"ready", "publish", "preview"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := h.run(t, cmd)
			assert.Equal(t, ExitNotFound, ExitCode(err))
		})
	}
}

func TestMissingConfig(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "status")
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestNewRouter(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "init")

	cli := CLI{Config: h.configPath, Out: &bytes.Buffer{}}
	a, err := cli.open()
	require.NoError(t, err)
	t.Cleanup(a.Close)

	router, sync, err := newRouter(context.Background(), a.cfg, a.engine, metrics.NewRecorder(nil))
	require.NoError(t, err)
	assert.Nil(t, sync)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/posts/v1", http.StatusOK},
		{http.MethodGet, "/api/posts/v1/7", http.StatusNotFound},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/index.html", http.StatusMovedPermanently},
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodPost, "/", http.StatusMethodNotAllowed},
		{http.MethodPost, "/webhook/git", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
