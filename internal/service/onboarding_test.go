package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ckeiituk/iplist-bot/common/id"
	"github.com/ckeiituk/iplist-bot/internal/build"
	"github.com/ckeiituk/iplist-bot/internal/dnscheck"
	"github.com/ckeiituk/iplist-bot/internal/model"
	"github.com/ckeiituk/iplist-bot/internal/notify"
)

func TestMain(m *testing.M) {
	if err := id.Init(1); err != nil {
		panic(err)
	}
	m.Run()
}

type fakeKeywords struct {
	domain string
	err    error
	calls  int
}

func (f *fakeKeywords) ResolveDomain(context.Context, string) (string, error) {
	f.calls++
	return f.domain, f.err
}

type fakeClassifier struct {
	category string
	err      error
	calls    int
}

func (f *fakeClassifier) Classify(context.Context, string, []string) (string, error) {
	f.calls++
	return f.category, f.err
}

type fakeDNS struct {
	result  dnscheck.Result
	domains []string
}

func (f *fakeDNS) Resolve(_ context.Context, domain string) dnscheck.Result {
	f.domains = append(f.domains, domain)
	return f.result
}

type publishedFile struct {
	category string
	domain   string
	config   model.SiteConfig
}

type fakePublisher struct {
	categories []string
	publishErr error
	published  []publishedFile
}

func (f *fakePublisher) Categories(context.Context) ([]string, error) {
	return f.categories, nil
}

func (f *fakePublisher) Publish(_ context.Context, category, domain string, cfg model.SiteConfig) (string, string, error) {
	if f.publishErr != nil {
		return "", "", f.publishErr
	}
	f.published = append(f.published, publishedFile{category: category, domain: domain, config: cfg})
	return "https://github.com/ckeiituk/iplist/blob/master/config/" + category + "/" + domain + ".json",
		"commit-abc", nil
}

type fixture struct {
	keywords   *fakeKeywords
	classifier *fakeClassifier
	dns        *fakeDNS
	publisher  *fakePublisher
	ledger     *build.MemoryLedger
	svc        *OnboardingService
}

func newFixture() *fixture {
	f := &fixture{
		keywords:   &fakeKeywords{domain: "steampowered.com"},
		classifier: &fakeClassifier{category: "games"},
		dns: &fakeDNS{result: dnscheck.Result{
			IP4: []string{"23.214.49.87"},
			IP6: []string{"2600:1408:c400::1"},
		}},
		publisher: &fakePublisher{categories: []string{"games", "social"}},
		ledger:    build.NewMemoryLedger(),
	}
	f.svc = NewOnboardingService(OnboardingConfig{
		Keywords:   f.keywords,
		Classifier: f.classifier,
		DNS:        f.dns,
		Publisher:  f.publisher,
		Ledger:     f.ledger,
		DNSServers: []string{"77.88.8.88:53"},
	})
	return f
}

func TestOnboardDomainInput(t *testing.T) {
	f := newFixture()

	result, err := f.svc.Onboard(context.Background(), OnboardingRequest{
		Input:  "https://www.Example.com/",
		UserID: 7,
		Target: notify.Target{ChatID: 7},
	})
	if err != nil {
		t.Fatalf("Onboard: %v", err)
	}

	if result.Domain != "example.com" {
		t.Errorf("Domain = %q, want example.com", result.Domain)
	}
	if result.Category != "games" {
		t.Errorf("Category = %q", result.Category)
	}
	if f.keywords.calls != 0 {
		t.Error("keyword resolution ran for input that already is a domain")
	}

	pending, ok := f.ledger.Get(result.CommitSHA)
	if !ok {
		t.Fatal("no ledger entry for publish commit")
	}
	if pending.Domain != "example.com" || pending.UserID != 7 {
		t.Errorf("ledger entry = %+v", pending)
	}

	if len(f.publisher.published) != 1 {
		t.Fatalf("published %d files", len(f.publisher.published))
	}
	cfg := f.publisher.published[0].config
	if cfg.Domains[0] != "example.com" || cfg.Domains[1] != "www.example.com" {
		t.Errorf("config domains = %v", cfg.Domains)
	}
}

func TestOnboardKeywordInput(t *testing.T) {
	f := newFixture()

	result, err := f.svc.Onboard(context.Background(), OnboardingRequest{Input: "steam"})
	if err != nil {
		t.Fatalf("Onboard: %v", err)
	}
	if f.keywords.calls != 1 {
		t.Errorf("keyword resolution calls = %d, want 1", f.keywords.calls)
	}
	if result.Domain != "steampowered.com" {
		t.Errorf("Domain = %q", result.Domain)
	}
	if f.dns.domains[0] != "steampowered.com" {
		t.Errorf("dns queried %v", f.dns.domains)
	}
}

func TestOnboardDNSFailureLeavesNoLedgerEntry(t *testing.T) {
	f := newFixture()
	f.dns.result = dnscheck.Result{Issue: dnscheck.IssueNXDomain}

	_, err := f.svc.Onboard(context.Background(), OnboardingRequest{Input: "example.com"})

	var resErr *dnscheck.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v, want ResolutionError", err)
	}
	if resErr.Issue != dnscheck.IssueNXDomain {
		t.Errorf("Issue = %q", resErr.Issue)
	}
	if len(f.publisher.published) != 0 {
		t.Error("config published despite failed resolution")
	}
	if len(f.ledger.Keys()) != 0 {
		t.Error("ledger entry created despite failed resolution")
	}
}

func TestOnboardPublishFailureLeavesNoLedgerEntry(t *testing.T) {
	f := newFixture()
	f.publisher.publishErr = errors.New("github is down")

	_, err := f.svc.Onboard(context.Background(), OnboardingRequest{Input: "example.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.ledger.Keys()) != 0 {
		t.Error("ledger entry created despite failed publish")
	}
}

func TestAddManualValidCategory(t *testing.T) {
	f := newFixture()

	result, err := f.svc.AddManual(context.Background(), OnboardingRequest{
		Input:    "example.com",
		Category: "GAMES",
	})
	if err != nil {
		t.Fatalf("AddManual: %v", err)
	}
	if result.Category != "games" {
		t.Errorf("Category = %q, want the repository's casing", result.Category)
	}
	if f.classifier.calls != 0 {
		t.Error("classification ran on the manual path")
	}
	if f.keywords.calls != 0 {
		t.Error("keyword resolution ran on the manual path")
	}
}

func TestAddManualUnknownCategory(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AddManual(context.Background(), OnboardingRequest{
		Input:    "example.com",
		Category: "warez",
	})
	if !errors.Is(err, ErrCategoryUnknown) {
		t.Fatalf("error = %v, want ErrCategoryUnknown", err)
	}
	if len(f.ledger.Keys()) != 0 {
		t.Error("ledger entry created despite unknown category")
	}
}

func TestOnboardProgressUpdates(t *testing.T) {
	f := newFixture()

	var stages []string
	_, err := f.svc.Onboard(context.Background(), OnboardingRequest{
		Input: "steam",
		Progress: func(_ context.Context, text string) {
			stages = append(stages, text)
		},
	})
	if err != nil {
		t.Fatalf("Onboard: %v", err)
	}
	if len(stages) != 5 {
		t.Fatalf("progress updates = %d (%v), want 5", len(stages), stages)
	}
}
