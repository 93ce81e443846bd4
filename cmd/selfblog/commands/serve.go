package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/application"
	"github.com/dfryer1193/selfblog/internal/metrics"
	"github.com/dfryer1193/selfblog/internal/middleware"
	"github.com/dfryer1193/selfblog/internal/rest"
	"github.com/dfryer1193/selfblog/shared/config"
	gh "github.com/dfryer1193/selfblog/shared/github"
	webhookhttp "github.com/dfryer1193/selfblog/webhook/http"
)

const shutdownTimeout = 5 * time.Second

type ServeCmd struct {
	Listen string `help:"Listen address (overrides server.listen)"`
}

func (s *ServeCmd) Run(root *CLI) error {
	recorder := metrics.NewRecorder(nil)

	a, err := root.open(application.WithObserver(recorder))
	if err != nil {
		return err
	}
	defer a.Close()

	router, sync, err := newRouter(context.Background(), a.cfg, a.engine, recorder)
	if err != nil {
		return err
	}
	if sync != nil {
		defer func() {
			if err := sync.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to gracefully close sync service")
			}
		}()
	}

	addr := a.cfg.Server.Listen
	if s.Listen != "" {
		addr = s.Listen
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("siteDir", a.cfg.SiteDir).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

// newRouter assembles the HTTP surface: the posts API, metrics, the source
// webhook when sync is configured, and the static site as the fallback. The
// returned sync service is nil when sync is off.
func newRouter(ctx context.Context, cfg *config.Config, engine *application.Engine, recorder *metrics.Recorder) (*gin.Engine, *application.SyncService, error) {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(middleware.LoggingMiddleware(recorder))
	r.Use(gin.CustomRecovery(middleware.HandlePanics()))

	rest.NewApi(r, rest.NewPostsHandler(engine))
	r.GET("/metrics", gin.WrapH(recorder.Handler()))

	sync, err := newSync(ctx, cfg, engine, r)
	if err != nil {
		return nil, nil, err
	}

	rest.ServeSite(r, cfg.SiteDir)
	return r, sync, nil
}

func newSync(ctx context.Context, cfg *config.Config, engine *application.Engine, r gin.IRouter) (*application.SyncService, error) {
	if !cfg.GitHub.Enabled() {
		log.Info().Msg("Source sync disabled, no GitHub repository configured")
		return nil, nil
	}
	if cfg.Server.WebhookSecret == "" {
		log.Warn().Msg("Source sync disabled, webhook secret is not set")
		return nil, nil
	}

	sourceRepo := gh.NewSourceRepository(gh.NewClient(cfg.GitHub.Token), cfg.GitHub.Owner, cfg.GitHub.Repo)

	mainBranchName, err := sourceRepo.GetDefaultBranchName(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get default branch name: %w", err)
	}

	sync := application.NewSyncService(engine, sourceRepo, cfg.GitHub.PostsPrefix, mainBranchName)

	webhook, err := webhookhttp.NewWebhookHandler(cfg.Server.WebhookSecret, sourceRepo.GetRepoFullName(), sync)
	if err != nil {
		sync.Close()
		return nil, err
	}
	webhook.RegisterRoutes(r)

	log.Info().
		Str("repo", sourceRepo.GetRepoFullName()).
		Str("branch", mainBranchName).
		Str("prefix", cfg.GitHub.PostsPrefix).
		Msg("Source sync enabled")
	return sync, nil
}
