package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ckeiituk/iplist-bot/internal/build"
	"github.com/ckeiituk/iplist-bot/internal/http/handler/webhook"
	"github.com/ckeiituk/iplist-bot/internal/model"
	"github.com/ckeiituk/iplist-bot/internal/notify"
)

type recordingSink struct {
	sent []string
}

func (r *recordingSink) Send(_ context.Context, _ notify.Target, text string) error {
	r.sent = append(r.sent, text)
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func workflowRunBody(status, conclusion, headSHA string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"action": "completed",
		"workflow_run": map[string]any{
			"status":     status,
			"conclusion": conclusion,
			"head_sha":   headSHA,
		},
	})
	return payload
}

var _ = Describe("GitHubWebhookHandler", func() {
	const secret = "webhook-secret"

	var (
		router *gin.Engine
		ledger *build.MemoryLedger
		sink   *recordingSink
	)

	newRequest := func(body []byte, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()

		ledger = build.NewMemoryLedger()
		sink = &recordingSink{}
		resolver := build.NewResolver(ledger, sink)

		h := webhook.NewGitHubWebhookHandler(resolver, secret)
		router.POST("/webhook/github", h.HandleEvent)
	})

	It("processes a signed success event and resolves every pending build", func() {
		ledger.Add("sha-old", model.PendingBuild{Domain: "a.com", Target: notify.Target{ChatID: 1}})
		ledger.Add("sha-new", model.PendingBuild{Domain: "b.com", Target: notify.Target{ChatID: 2}})

		body := workflowRunBody("completed", "success", "sha-new")
		w := newRequest(body, map[string]string{
			"X-GitHub-Event":      "workflow_run",
			"X-Hub-Signature-256": sign(secret, body),
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("Processed"))
		Expect(ledger.Keys()).To(BeEmpty())
		Expect(sink.sent).To(HaveLen(2))
	})

	It("rejects a tampered body", func() {
		body := workflowRunBody("completed", "success", "sha1")
		tampered := append([]byte(nil), body...)
		tampered[len(tampered)-2] ^= 0xff

		w := newRequest(tampered, map[string]string{
			"X-GitHub-Event":      "workflow_run",
			"X-Hub-Signature-256": sign(secret, body),
		})

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(Equal("Invalid signature"))
	})

	It("rejects a missing signature", func() {
		body := workflowRunBody("completed", "success", "sha1")
		w := newRequest(body, map[string]string{
			"X-GitHub-Event": "workflow_run",
		})

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(Equal("No signature"))
	})

	It("skips verification when no secret is configured", func() {
		router = gin.New()
		resolver := build.NewResolver(ledger, sink)
		h := webhook.NewGitHubWebhookHandler(resolver, "")
		router.POST("/webhook/github", h.HandleEvent)

		body := workflowRunBody("completed", "success", "sha1")
		w := newRequest(body, map[string]string{
			"X-GitHub-Event": "workflow_run",
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("Processed"))
	})

	It("acknowledges unrelated event types without touching the ledger", func() {
		ledger.Add("sha1", model.PendingBuild{Domain: "a.com"})

		body := []byte(`{"zen": "Design for failure."}`)
		w := newRequest(body, map[string]string{
			"X-GitHub-Event":      "ping",
			"X-Hub-Signature-256": sign(secret, body),
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("Ignored event"))
		Expect(ledger.Keys()).To(HaveLen(1))
	})

	It("acknowledges in-progress runs without resolving", func() {
		ledger.Add("sha1", model.PendingBuild{Domain: "a.com"})

		body := workflowRunBody("in_progress", "", "sha1")
		w := newRequest(body, map[string]string{
			"X-GitHub-Event":      "workflow_run",
			"X-Hub-Signature-256": sign(secret, body),
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("Not completed yet"))
		Expect(ledger.Keys()).To(HaveLen(1))
		Expect(sink.sent).To(BeEmpty())
	})

	It("keeps pending builds on a cancelled run", func() {
		ledger.Add("sha1", model.PendingBuild{Domain: "a.com"})

		body := workflowRunBody("completed", "cancelled", "sha1")
		w := newRequest(body, map[string]string{
			"X-GitHub-Event":      "workflow_run",
			"X-Hub-Signature-256": sign(secret, body),
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("Processed"))
		Expect(ledger.Keys()).To(HaveLen(1))
		Expect(sink.sent).To(BeEmpty())
	})

	It("resolves only the matching build on failure", func() {
		ledger.Add("sha1", model.PendingBuild{Domain: "a.com", Target: notify.Target{ChatID: 1}})
		ledger.Add("sha2", model.PendingBuild{Domain: "b.com", Target: notify.Target{ChatID: 2}})

		body := workflowRunBody("completed", "failure", "sha1")
		w := newRequest(body, map[string]string{
			"X-GitHub-Event":      "workflow_run",
			"X-Hub-Signature-256": sign(secret, body),
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(ledger.Keys()).To(ConsistOf("sha2"))
		Expect(sink.sent).To(HaveLen(1))
		Expect(sink.sent[0]).To(ContainSubstring("a.com"))
	})

	It("answers 500 on a malformed payload", func() {
		body := []byte(`{"workflow_run": `)
		w := newRequest(body, map[string]string{
			"X-GitHub-Event":      "workflow_run",
			"X-Hub-Signature-256": sign(secret, body),
		})

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
