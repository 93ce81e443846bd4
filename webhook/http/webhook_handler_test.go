package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v75/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

type fakePushHandler struct {
	events []*github.PushEvent
	err    error
}

func (f *fakePushHandler) HandlePushEvent(evt *github.PushEvent) error {
	f.events = append(f.events, evt)
	return f.err
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func send(t *testing.T, h *WebhookHandler, event string, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/webhook/git", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const pushPayload = `{"ref":"refs/heads/main","before":"a","after":"b","repository":{"full_name":"owner/blog"}}`

func TestNewWebhookHandler_RequiresSecret(t *testing.T) {
	_, err := NewWebhookHandler("", "owner/blog", &fakePushHandler{})
	assert.Error(t, err)
}

func TestHandleGitWebhook(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		payload    string
		signature  func(payload []byte) string
		handlerErr error
		wantStatus int
		wantPushes int
	}{
		{
			name:       "Valid push",
			event:      "push",
			payload:    pushPayload,
			signature:  func(p []byte) string { return sign(p, testSecret) },
			wantStatus: http.StatusNoContent,
			wantPushes: 1,
		},
		{
			name:       "Bad signature",
			event:      "push",
			payload:    pushPayload,
			signature:  func(p []byte) string { return sign(p, "wrong") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Missing signature",
			event:      "push",
			payload:    pushPayload,
			signature:  func([]byte) string { return "" },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Other repository",
			event:      "push",
			payload:    `{"ref":"refs/heads/main","repository":{"full_name":"someone/else"}}`,
			signature:  func(p []byte) string { return sign(p, testSecret) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "Ping is ignored",
			event:      "ping",
			payload:    `{"zen":"hi"}`,
			signature:  func(p []byte) string { return sign(p, testSecret) },
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Handler failure",
			event:      "push",
			payload:    pushPayload,
			signature:  func(p []byte) string { return sign(p, testSecret) },
			handlerErr: errors.New("github down"),
			wantStatus: http.StatusInternalServerError,
			wantPushes: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pushes := &fakePushHandler{err: tt.handlerErr}
			h, err := NewWebhookHandler(testSecret, "owner/blog", pushes)
			require.NoError(t, err)

			payload := []byte(tt.payload)
			rec := send(t, h, tt.event, payload, tt.signature(payload))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Len(t, pushes.events, tt.wantPushes)
			if tt.wantPushes > 0 {
				assert.Equal(t, "refs/heads/main", pushes.events[0].GetRef())
			}
		})
	}
}
