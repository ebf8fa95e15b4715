package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ckeiituk/iplist-bot/internal/classify"
	"github.com/ckeiituk/iplist-bot/internal/dnscheck"
	"github.com/ckeiituk/iplist-bot/internal/notify"
	"github.com/ckeiituk/iplist-bot/internal/service"
)

// OnboardingHandler exposes the onboarding pipeline to trusted internal
// callers (the chat frontend). The conversational surface itself lives
// outside this service.
type OnboardingHandler struct {
	onboarding *service.OnboardingService
}

func NewOnboardingHandler(onboarding *service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding}
}

type onboardRequest struct {
	Input    string `json:"input" binding:"required"`
	Category string `json:"category"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	ChatID   int64  `json:"chat_id" binding:"required"`
	ThreadID int    `json:"thread_id"`
}

func (h *OnboardingHandler) Onboard(c *gin.Context) {
	var req onboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	onboardReq := service.OnboardingRequest{
		Input:    req.Input,
		Category: req.Category,
		UserID:   req.UserID,
		Username: req.Username,
		Target:   notify.Target{ChatID: req.ChatID, ThreadID: req.ThreadID},
	}

	var (
		result *service.OnboardingResult
		err    error
	)
	if req.Category != "" {
		result, err = h.onboarding.AddManual(ctx, onboardReq)
	} else {
		result, err = h.onboarding.Onboard(ctx, onboardReq)
	}
	if err != nil {
		status := http.StatusBadGateway
		var dnsErr *dnscheck.ResolutionError
		switch {
		case errors.Is(err, service.ErrCategoryUnknown),
			errors.Is(err, classify.ErrDomainResolution),
			errors.Is(err, classify.ErrCategoryNotFound):
			status = http.StatusUnprocessableEntity
		case errors.As(err, &dnsErr):
			status = http.StatusUnprocessableEntity
		}
		slog.WarnContext(ctx, "onboarding failed", "error", err, "input", req.Input)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": result.RequestID,
		"domain":     result.Domain,
		"category":   result.Category,
		"ip4":        result.IP4,
		"ip6":        result.IP6,
		"file_url":   result.FileURL,
		"commit_sha": result.CommitSHA,
	})
}
