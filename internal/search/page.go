package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Fetcher retrieves a domain's homepage and extracts readable text.
type Fetcher interface {
	FetchPage(ctx context.Context, domain string, maxChars int) (string, error)
}

// PageFetcher fetches https://<domain> and strips it down to visible text.
type PageFetcher struct {
	httpClient *http.Client
}

func NewPageFetcher(timeout time.Duration) *PageFetcher {
	return &PageFetcher{httpClient: &http.Client{Timeout: timeout}}
}

func (f *PageFetcher) FetchPage(ctx context.Context, domain string, maxChars int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+domain, nil)
	if err != nil {
		return "", fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching %s: status %d", domain, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", domain, err)
	}

	text := collapseWhitespace(extractText(doc))
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}

// extractText collects text nodes, skipping script and style content.
func extractText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

// collapseWhitespace trims lines, splits multi-phrase lines on double
// spaces and drops the blanks.
func collapseWhitespace(text string) string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				chunks = append(chunks, p)
			}
		}
	}
	return strings.Join(chunks, "\n")
}
