package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ckeiituk/iplist-bot/internal/build"
	"github.com/ckeiituk/iplist-bot/internal/dnscheck"
	"github.com/ckeiituk/iplist-bot/internal/http/handler"
	"github.com/ckeiituk/iplist-bot/internal/model"
	"github.com/ckeiituk/iplist-bot/internal/service"
)

type stubKeywords struct {
	domain string
	err    error
}

func (s *stubKeywords) ResolveDomain(context.Context, string) (string, error) {
	return s.domain, s.err
}

type stubClassifier struct {
	category string
	err      error
}

func (s *stubClassifier) Classify(context.Context, string, []string) (string, error) {
	return s.category, s.err
}

type stubDNS struct {
	result dnscheck.Result
}

func (s *stubDNS) Resolve(context.Context, string) dnscheck.Result {
	return s.result
}

type stubPublisher struct {
	categories []string
	fileURL    string
	commitSHA  string
	err        error
}

func (s *stubPublisher) Categories(context.Context) ([]string, error) {
	return s.categories, nil
}

func (s *stubPublisher) Publish(context.Context, string, string, model.SiteConfig) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return s.fileURL, s.commitSHA, nil
}

var _ = Describe("OnboardingHandler", func() {
	var (
		router *gin.Engine
		dns    *stubDNS
	)

	post := func(body map[string]any) *httptest.ResponseRecorder {
		payload, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/domains", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()

		dns = &stubDNS{result: dnscheck.Result{IP4: []string{"104.244.42.1"}}}
		svc := service.NewOnboardingService(service.OnboardingConfig{
			Keywords:   &stubKeywords{domain: "x.com"},
			Classifier: &stubClassifier{category: "social"},
			DNS:        dns,
			Publisher: &stubPublisher{
				categories: []string{"social", "games"},
				fileURL:    "https://github.com/ckeiituk/iplist/blob/master/config/social/x.com.json",
				commitSHA:  "commit-abc",
			},
			Ledger: build.NewMemoryLedger(),
		})

		h := handler.NewOnboardingHandler(svc)
		router.POST("/api/v1/domains", h.Onboard)
	})

	It("onboards a domain and returns the publish result", func() {
		w := post(map[string]any{"input": "x.com", "chat_id": 42})

		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["domain"]).To(Equal("x.com"))
		Expect(resp["category"]).To(Equal("social"))
		Expect(resp["commit_sha"]).To(Equal("commit-abc"))
		Expect(resp["ip4"]).To(ConsistOf("104.244.42.1"))
	})

	It("uses the manual path when a category is supplied", func() {
		w := post(map[string]any{"input": "x.com", "chat_id": 42, "category": "GAMES"})

		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["category"]).To(Equal("games"))
	})

	It("answers 422 for an unknown manual category", func() {
		w := post(map[string]any{"input": "x.com", "chat_id": 42, "category": "warez"})

		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	It("answers 422 when the domain does not resolve", func() {
		dns.result = dnscheck.Result{Issue: dnscheck.IssueNXDomain}

		w := post(map[string]any{"input": "nope.invalid", "chat_id": 42})

		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["error"]).To(ContainSubstring("nxdomain"))
	})

	It("rejects a body without input", func() {
		w := post(map[string]any{"chat_id": 42})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a body without chat_id", func() {
		w := post(map[string]any{"input": "x.com"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
