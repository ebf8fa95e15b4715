package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ckeiituk/iplist-bot/internal/llm"
)

// ErrDomainResolution means the keyword could not be mapped to a confident,
// well-formed domain.
var ErrDomainResolution = errors.New("could not resolve domain from keyword")

const maxResolvedDomainLength = 100

// KeywordResolver maps a bare keyword ("steam") to a canonical domain
// ("steampowered.com") via the generative backend.
type KeywordResolver struct {
	llm llm.Client
}

func NewKeywordResolver(client llm.Client) *KeywordResolver {
	return &KeywordResolver{llm: client}
}

func (r *KeywordResolver) ResolveDomain(ctx context.Context, keyword string) (string, error) {
	prompt := fmt.Sprintf(
		"What is the main domain of the service '%s'? "+
			"Return ONLY the domain, without http://, www. or any explanation. "+
			"If you are not sure or it is not a known service, return 'UNKNOWN'.",
		keyword,
	)

	answer, err := r.llm.Generate(ctx, prompt, 30)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDomainResolution, err)
	}

	domain := CleanDomain(answer)

	switch {
	case strings.Contains(domain, "unknown"),
		len(domain) > maxResolvedDomainLength,
		strings.ContainsAny(domain, " \t\n"):
		return "", fmt.Errorf("%w: keyword %q", ErrDomainResolution, keyword)
	}

	return domain, nil
}

// CleanDomain normalizes user- or model-supplied domain text: lowercase,
// scheme and leading www. stripped, trailing slash removed.
func CleanDomain(text string) string {
	domain := strings.ToLower(strings.TrimSpace(text))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimRight(domain, "/")
}
