package dnscheck

import (
	"context"
	"fmt"
	"log/slog"
)

// ResolutionError reports a lookup that produced no addresses, carrying the
// classified reason.
type ResolutionError struct {
	Domain string
	Issue  Issue
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("dns resolution failed for %s: %s", e.Domain, e.Issue)
}

// Engine resolves through a primary resolver with an optional fallback
// configured with alternate nameservers.
type Engine struct {
	primary  *Resolver
	fallback *Resolver
}

func NewEngine(primary, fallback *Resolver) *Engine {
	return &Engine{primary: primary, fallback: fallback}
}

// Resolve runs the primary lookup and, when it yields no addresses of either
// type, retries against the fallback nameservers. Any address from the
// fallback supersedes the primary result, clearing its failure reason. When
// both come back empty the reported reason is picked by priority across
// whichever resolvers produced one.
func (e *Engine) Resolve(ctx context.Context, domain string) Result {
	primary := e.primary.Resolve(ctx, domain)
	if !primary.Empty() || e.fallback == nil {
		return primary
	}

	slog.InfoContext(ctx, "primary resolver returned no addresses, trying fallback",
		"domain", domain,
		"issue", primary.Issue)

	fallback := e.fallback.Resolve(ctx, domain)
	if !fallback.Empty() {
		return fallback
	}

	return Result{Issue: pickIssue(primary.Issue, fallback.Issue)}
}
