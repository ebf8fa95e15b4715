package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ckeiituk/iplist-bot/common/id"
	"github.com/ckeiituk/iplist-bot/common/logger"
	"github.com/ckeiituk/iplist-bot/internal/build"
	"github.com/ckeiituk/iplist-bot/internal/classify"
	"github.com/ckeiituk/iplist-bot/internal/dnscheck"
	"github.com/ckeiituk/iplist-bot/internal/model"
	"github.com/ckeiituk/iplist-bot/internal/notify"
	"github.com/ckeiituk/iplist-bot/internal/repo"
)

// ErrCategoryUnknown means a manually supplied category does not exist in
// the repository.
var ErrCategoryUnknown = errors.New("category not found in repository")

// Progress receives human-readable stage updates for relaying to the
// requester's chat. Optional; stage failures are reported by the caller.
type Progress func(ctx context.Context, text string)

type OnboardingRequest struct {
	// Input is the raw user text: a domain, a URL or a bare keyword.
	Input string
	// Category is set only on the manual path; it skips classification.
	Category string
	UserID   int64
	Username string
	Target   notify.Target
	Progress Progress
}

func (r OnboardingRequest) report(ctx context.Context, text string) {
	if r.Progress != nil {
		r.Progress(ctx, text)
	}
}

type OnboardingResult struct {
	RequestID int64
	Domain    string
	Category  string
	IP4       []string
	IP6       []string
	FileURL   string
	CommitSHA string
}

// KeywordResolver maps a bare keyword to a canonical domain.
type KeywordResolver interface {
	ResolveDomain(ctx context.Context, keyword string) (string, error)
}

// DomainClassifier assigns a domain to one of the allowed categories.
type DomainClassifier interface {
	Classify(ctx context.Context, domain string, categories []string) (string, error)
}

// DNSEngine resolves a domain to address lists with a classified reason.
type DNSEngine interface {
	Resolve(ctx context.Context, domain string) dnscheck.Result
}

// OnboardingService runs the pipeline that turns user input into a
// published, versioned site config: optional keyword resolution,
// classification, DNS lookup, publish, then a ledger entry for the deferred
// build notification. Any stage failure aborts only the remaining stages of
// that single attempt; ledger entries exist strictly after a successful
// publish.
type OnboardingService struct {
	keywords   KeywordResolver
	classifier DomainClassifier
	dns        DNSEngine
	publisher  repo.Publisher
	ledger     build.Ledger
	reporter   *notify.Reporter
	dnsServers []string
}

type OnboardingConfig struct {
	Keywords   KeywordResolver
	Classifier DomainClassifier
	DNS        DNSEngine
	Publisher  repo.Publisher
	Ledger     build.Ledger
	Reporter   *notify.Reporter
	// DNSServers are written into published configs as resolver hints.
	DNSServers []string
}

func NewOnboardingService(cfg OnboardingConfig) *OnboardingService {
	return &OnboardingService{
		keywords:   cfg.Keywords,
		classifier: cfg.Classifier,
		dns:        cfg.DNS,
		publisher:  cfg.Publisher,
		ledger:     cfg.Ledger,
		reporter:   cfg.Reporter,
		dnsServers: cfg.DNSServers,
	}
}

// Onboard handles free-form input: keywords are resolved to a domain first,
// then the domain is classified against the repository's categories.
func (s *OnboardingService) Onboard(ctx context.Context, req OnboardingRequest) (*OnboardingResult, error) {
	domain := classify.CleanDomain(req.Input)
	requestID := id.New()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RequestID: logger.Ptr(requestID),
		Domain:    logger.Ptr(domain),
		Component: "iplist.service.onboarding",
	})
	sc := logger.StartSpan(ctx, "iplist.onboard")
	defer sc.End()
	ctx = sc.Context()

	if !strings.Contains(domain, ".") {
		req.report(ctx, fmt.Sprintf("🔍 Resolving domain for '%s'...", domain))
		resolved, err := s.keywords.ResolveDomain(ctx, domain)
		if err != nil {
			sc.RecordError(err)
			return nil, err
		}
		slog.InfoContext(ctx, "keyword resolved", "keyword", domain, "resolved_domain", resolved)
		domain = resolved
		ctx = logger.WithLogFields(ctx, logger.LogFields{Domain: logger.Ptr(domain)})
	}

	req.report(ctx, "📂 Fetching categories...")
	categories, err := s.publisher.Categories(ctx)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}

	req.report(ctx, fmt.Sprintf("🤖 Picking a category for %s...", domain))
	category, err := s.classifier.Classify(ctx, domain, categories)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}

	return s.finish(ctx, req, requestID, domain, category)
}

// AddManual handles the explicit-category path: the supplied category is
// validated case-insensitively against the repository, and keyword
// resolution and classification are skipped.
func (s *OnboardingService) AddManual(ctx context.Context, req OnboardingRequest) (*OnboardingResult, error) {
	domain := classify.CleanDomain(req.Input)
	requestID := id.New()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RequestID: logger.Ptr(requestID),
		Domain:    logger.Ptr(domain),
		Component: "iplist.service.onboarding",
	})
	sc := logger.StartSpan(ctx, "iplist.onboard_manual")
	defer sc.End()
	ctx = sc.Context()

	categories, err := s.publisher.Categories(ctx)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}

	category := ""
	for _, c := range categories {
		if strings.EqualFold(c, req.Category) {
			category = c
			break
		}
	}
	if category == "" {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			ErrCategoryUnknown, req.Category, strings.Join(categories, ", "))
	}

	return s.finish(ctx, req, requestID, domain, category)
}

func (s *OnboardingService) finish(ctx context.Context, req OnboardingRequest, requestID int64, domain, category string) (*OnboardingResult, error) {
	req.report(ctx, fmt.Sprintf("🔍 Resolving DNS for %s...", domain))
	addrs := s.dns.Resolve(ctx, domain)
	if addrs.Empty() {
		return nil, &dnscheck.ResolutionError{Domain: domain, Issue: addrs.Issue}
	}

	siteConfig := model.NewSiteConfig(domain, s.dnsServers, addrs.IP4, addrs.IP6)

	req.report(ctx, "📤 Publishing config file...")
	fileURL, commitSHA, err := s.publisher.Publish(ctx, category, domain, siteConfig)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{CommitSHA: logger.Ptr(commitSHA)})

	// Only a successful publish may create a ledger entry; failed attempts
	// must never leave a record waiting for a build that won't come.
	s.ledger.Add(commitSHA, model.PendingBuild{
		UserID: req.UserID,
		Domain: domain,
		Target: req.Target,
	})

	slog.InfoContext(ctx, "onboarding complete, awaiting build",
		"category", category,
		"ip4", addrs.IP4,
		"ip6", addrs.IP6)

	s.reporter.Publish(ctx, notify.PublishReport{
		Username: req.Username,
		UserID:   req.UserID,
		Domain:   domain,
		Category: category,
		FileURL:  fileURL,
	})

	return &OnboardingResult{
		RequestID: requestID,
		Domain:    domain,
		Category:  category,
		IP4:       addrs.IP4,
		IP6:       addrs.IP6,
		FileURL:   fileURL,
		CommitSHA: commitSHA,
	}, nil
}
