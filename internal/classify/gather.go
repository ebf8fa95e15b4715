package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ckeiituk/iplist-bot/internal/search"
)

// Source tags where classification context came from.
const (
	SourceSearch = "search"
	SourcePage   = "page"
	SourceNone   = "none"
)

const (
	searchTopK  = 3
	pageCharCap = 2000
	noContent   = "Content unavailable."
)

// Context is the evidence handed to the classifier for one domain.
type Context struct {
	Source string
	Text   string
}

// Gatherer produces classification context: web search snippets when they
// look relevant, otherwise the domain's homepage text, otherwise a sentinel.
// Gather never fails; classification always proceeds with some context.
type Gatherer struct {
	searcher search.Searcher
	fetcher  search.Fetcher
}

func NewGatherer(searcher search.Searcher, fetcher search.Fetcher) *Gatherer {
	return &Gatherer{searcher: searcher, fetcher: fetcher}
}

func (g *Gatherer) Gather(ctx context.Context, domain string) Context {
	if text := g.searchContext(ctx, domain); text != "" {
		return Context{Source: SourceSearch, Text: text}
	}

	slog.InfoContext(ctx, "search yielded no usable results, fetching page", "domain", domain)

	text, err := g.fetcher.FetchPage(ctx, domain, pageCharCap)
	if err != nil {
		slog.WarnContext(ctx, "page fetch failed", "domain", domain, "error", err)
		return Context{Source: SourceNone, Text: noContent}
	}
	if text == "" {
		return Context{Source: SourceNone, Text: noContent}
	}
	return Context{Source: SourcePage, Text: text}
}

func (g *Gatherer) searchContext(ctx context.Context, domain string) string {
	// Quote the query for exact domain matches.
	results, err := g.searcher.Search(ctx, fmt.Sprintf("%q", domain), searchTopK)
	if err != nil {
		slog.WarnContext(ctx, "web search failed", "domain", domain, "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	formatted := make([]string, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, fmt.Sprintf("Title: %s\nSnippet: %s", r.Title, r.Snippet))
	}
	text := strings.Join(formatted, "\n\n")

	// Relevance filter: results that never mention the domain's second-level
	// label are about something else entirely.
	sld, _, _ := strings.Cut(domain, ".")
	if !strings.Contains(strings.ToLower(text), strings.ToLower(sld)) {
		slog.WarnContext(ctx, "search results look irrelevant, discarding",
			"domain", domain,
			"sld", sld)
		return ""
	}
	return text
}
