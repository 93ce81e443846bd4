package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/internal/middleware"
)

// PushHandler consumes validated push events.
type PushHandler interface {
	HandlePushEvent(evt *github.PushEvent) error
}

type WebhookHandler struct {
	webhookSecret []byte
	repoFullName  string
	pushes        PushHandler
}

// NewWebhookHandler accepts push events for repoFullName ("owner/repo")
// signed with secret.
func NewWebhookHandler(secret string, repoFullName string, pushes PushHandler) (*WebhookHandler, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is not set (server.webhook_secret or WEBHOOK_SECRET)")
	}

	return &WebhookHandler{
		webhookSecret: []byte(secret),
		repoFullName:  repoFullName,
		pushes:        pushes,
	}, nil
}

func (h *WebhookHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhook/git", h.HandleGitWebhook)
}

func (h *WebhookHandler) HandleGitWebhook(c *gin.Context) {
	logger := log.With().Str("requestID", middleware.RequestID(c)).Logger()

	payload, err := github.ValidatePayload(c.Request, h.webhookSecret)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected webhook payload")
		c.String(http.StatusBadRequest, "Invalid payload")
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(c.Request), payload)
	if err != nil {
		logger.Warn().Err(err).Msg("Unparsable webhook event")
		c.String(http.StatusBadRequest, "Invalid event")
		return
	}

	switch evt := event.(type) {
	case *github.PushEvent:
		if name := evt.GetRepo().GetFullName(); h.repoFullName != "" && name != h.repoFullName {
			logger.Warn().Str("repo", name).Msg("Ignoring push from unexpected repository")
			c.String(http.StatusForbidden, "Unexpected repository")
			return
		}
		if err := h.pushes.HandlePushEvent(evt); err != nil {
			logger.Error().Err(err).Str("ref", evt.GetRef()).Msg("Failed to handle push event")
			c.String(http.StatusInternalServerError, "Error handling event")
			return
		}
		logger.Info().Str("ref", evt.GetRef()).Str("after", evt.GetAfter()).Msg("Push event accepted")
	default:
		logger.Debug().Str("event", github.WebHookType(c.Request)).Msg("Ignoring webhook event")
	}

	c.Status(http.StatusNoContent)
}
