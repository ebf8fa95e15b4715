package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/ckeiituk/iplist-bot/core/config"
	"github.com/ckeiituk/iplist-bot/internal/model"
)

// ErrPublishFailed is returned only when the write itself fails; read
// failures during the conditional check are treated as "file absent".
var ErrPublishFailed = errors.New("repository publish failed")

const configRoot = "config"

// Publisher writes site configs into the versioned list repository.
type Publisher interface {
	// Categories lists the category directories under config/.
	Categories(ctx context.Context) ([]string, error)
	// Publish idempotently creates or updates config/<category>/<domain>.json
	// and returns the file's public URL and the resulting commit SHA.
	Publish(ctx context.Context, category, domain string, cfg model.SiteConfig) (string, string, error)
}

// GitHubPublisher targets a branch of a GitHub repository through the
// contents API.
type GitHubPublisher struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

func NewGitHubPublisher(ctx context.Context, cfg config.GitHubConfig) *GitHubPublisher {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	return NewGitHubPublisherWithClient(client, cfg.Owner(), cfg.Name(), cfg.Branch)
}

// NewGitHubPublisherWithClient lets tests point the publisher at a fake API.
func NewGitHubPublisherWithClient(client *github.Client, owner, repo, branch string) *GitHubPublisher {
	return &GitHubPublisher{client: client, owner: owner, repo: repo, branch: branch}
}

func (p *GitHubPublisher) Categories(ctx context.Context) ([]string, error) {
	_, dir, _, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, configRoot,
		&github.RepositoryContentGetOptions{Ref: p.branch})
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	var categories []string
	for _, entry := range dir {
		if entry.GetType() == "dir" {
			categories = append(categories, entry.GetName())
		}
	}
	return categories, nil
}

func (p *GitHubPublisher) Publish(ctx context.Context, category, domain string, cfg model.SiteConfig) (string, string, error) {
	path := fmt.Sprintf("%s/%s/%s.json", configRoot, category, domain)

	content, err := cfg.MarshalIndented()
	if err != nil {
		return "", "", err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(fmt.Sprintf("feat(%s): add %s", category, domain)),
		Content: content,
		Branch:  github.Ptr(p.branch),
	}

	// Conditional read: an existing file's blob SHA is the version token the
	// update must carry. Any read error counts as "does not exist".
	existing, _, _, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, path,
		&github.RepositoryContentGetOptions{Ref: p.branch})
	update := err == nil && existing != nil
	if update {
		opts.SHA = github.Ptr(existing.GetSHA())
		opts.Message = github.Ptr(fmt.Sprintf("fix(%s): update %s", category, domain))
	}

	var resp *github.RepositoryContentResponse
	if update {
		resp, _, err = p.client.Repositories.UpdateFile(ctx, p.owner, p.repo, path, opts)
	} else {
		resp, _, err = p.client.Repositories.CreateFile(ctx, p.owner, p.repo, path, opts)
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: writing %s: %v", ErrPublishFailed, path, err)
	}

	slog.InfoContext(ctx, "site config published",
		"path", path,
		"update", update,
		"commit_sha", resp.Commit.GetSHA())

	return resp.Content.GetHTMLURL(), resp.Commit.GetSHA(), nil
}
