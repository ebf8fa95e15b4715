package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ckeiituk/iplist-bot/common/logger"
	"github.com/ckeiituk/iplist-bot/internal/build"
)

const (
	eventHeader     = "X-GitHub-Event"
	signatureHeader = "X-Hub-Signature-256"
	workflowRun     = "workflow_run"
)

// GitHubWebhookHandler receives workflow_run completion events and advances
// the pending-build ledger through the resolver.
type GitHubWebhookHandler struct {
	resolver *build.Resolver
	secret   string
}

// NewGitHubWebhookHandler verifies signatures with secret; an empty secret
// disables verification (non-hardened default, warned about at startup).
func NewGitHubWebhookHandler(resolver *build.Resolver, secret string) *GitHubWebhookHandler {
	return &GitHubWebhookHandler{resolver: resolver, secret: secret}
}

type workflowRunPayload struct {
	WorkflowRun struct {
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		HeadSHA    string `json:"head_sha"`
	} `json:"workflow_run"`
}

func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Component: "iplist.webhook.github",
	})

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to read body")
		return
	}

	if h.secret != "" {
		signature := c.GetHeader(signatureHeader)
		if signature == "" {
			c.String(http.StatusUnauthorized, "No signature")
			return
		}
		if !h.verifySignature(body, signature) {
			slog.WarnContext(ctx, "webhook signature mismatch")
			c.String(http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	// Unexpected event types are acknowledged so the provider does not
	// count the delivery as failed.
	event := c.GetHeader(eventHeader)
	if event != workflowRun {
		slog.DebugContext(ctx, "ignoring webhook event", "event", event)
		c.String(http.StatusOK, "Ignored event")
		return
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{EventType: logger.Ptr(event)})

	var payload workflowRunPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "malformed webhook payload", "error", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	run := payload.WorkflowRun
	if run.Status != "completed" {
		c.String(http.StatusOK, "Not completed yet")
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{CommitSHA: logger.Ptr(run.HeadSHA)})

	switch run.Conclusion {
	case "success":
		h.resolver.Success(ctx, run.HeadSHA)
	case "cancelled":
		// Keep records pending and wait for the next terminal run.
		slog.InfoContext(ctx, "build cancelled, waiting for next success")
	case "failure":
		h.resolver.Failure(ctx, run.HeadSHA)
	default:
		slog.InfoContext(ctx, "unhandled workflow conclusion", "conclusion", run.Conclusion)
	}

	c.String(http.StatusOK, "Processed")
}

func (h *GitHubWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
