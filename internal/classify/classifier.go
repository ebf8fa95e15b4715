package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ckeiituk/iplist-bot/common/logger"
	"github.com/ckeiituk/iplist-bot/internal/llm"
)

// ErrCategoryNotFound means the model answered with something outside the
// allowed category list. No automatic retry.
var ErrCategoryNotFound = errors.New("model returned unknown category")

// Classifier assigns a domain to one of the repository's categories using
// gathered web context and the generative backend.
type Classifier struct {
	llm      llm.Client
	gatherer *Gatherer
}

func NewClassifier(client llm.Client, gatherer *Gatherer) *Classifier {
	return &Classifier{llm: client, gatherer: gatherer}
}

// Classify returns the matching entry from categories in its original
// casing.
func (c *Classifier) Classify(ctx context.Context, domain string, categories []string) (string, error) {
	evidence := c.gatherer.Gather(ctx, domain)

	slog.InfoContext(ctx, "classifying domain",
		"domain", domain,
		"context_source", evidence.Source,
		"context_preview", logger.Truncate(evidence.Text, 500))

	prompt := fmt.Sprintf(
		"Context from %s for %s:\n%s\n\n"+
			"Based on this context and the domain name, which of these categories fits best: [%s]? "+
			"Answer ONLY with the name of the category from the list, without explanation.",
		sourceLabel(evidence.Source), domain, evidence.Text, strings.Join(categories, ", "),
	)

	answer, err := c.llm.Generate(ctx, prompt, 50)
	if err != nil {
		return "", fmt.Errorf("classifying %s: %w", domain, err)
	}

	got := strings.ToLower(strings.TrimSpace(answer))
	for _, category := range categories {
		if strings.ToLower(category) == got {
			return category, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrCategoryNotFound, got)
}

func sourceLabel(source string) string {
	if source == SourceSearch {
		return "web search"
	}
	return "page content"
}
