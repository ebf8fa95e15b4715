package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"
	userAgent          = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Result is a single search hit.
type Result struct {
	Title   string
	Snippet string
}

// Searcher performs a web search and returns the top hits.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// DuckDuckGo queries the HTML (non-JS) endpoint and scrapes result anchors.
type DuckDuckGo struct {
	httpClient *http.Client
	endpoint   string
}

func NewDuckDuckGo(timeout time.Duration) *DuckDuckGo {
	return &DuckDuckGo{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   duckDuckGoEndpoint,
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	results, err := parseResults(resp.Body, maxResults)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}
	return results, nil
}

// parseResults walks the result page pairing result__a anchors (titles) with
// their following result__snippet blocks.
func parseResults(r io.Reader, maxResults int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) > maxResults {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, Result{Title: nodeText(n)})
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
