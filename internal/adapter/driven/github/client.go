// Package github implements the IssueTracker and TokenExchanger ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueTracker = (*Client)(nil)

// DefaultBaseURL is the REST endpoint of github.com.
const DefaultBaseURL = "https://api.github.com/"

// Client implements the driven.IssueTracker port for a single repository.
// Installation credentials are short-lived, so each call builds a go-github
// client over the shared transport with the credential it was given.
type Client struct {
	transport http.RoundTripper
	baseURL   *url.URL
	owner     string
	repo      string
}

// NewClient creates a GitHub issue tracker client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. oauth2 (installation token as Bearer auth, applied per call)
//
// baseURL may be empty for github.com.
func NewClient(baseURL, owner, repo string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	return newClient(rateLimitClient.Transport, baseURL, owner, repo)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, owner, repo string) (*Client, error) {
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return newClient(transport, baseURL, owner, repo)
}

func newClient(transport http.RoundTripper, baseURL, owner, repo string) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: transport,
		baseURL:   u,
		owner:     owner,
		repo:      repo,
	}, nil
}

// CreateIssue opens a new issue in the configured repository.
func (c *Client) CreateIssue(ctx context.Context, cred model.InstallationCredential, title, body string) (model.Issue, error) {
	issue, resp, err := c.api(cred).Issues.Create(ctx, c.owner, c.repo, &gh.IssueRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(body),
	})
	if err != nil {
		return model.Issue{}, fmt.Errorf("creating issue in %s/%s: %w", c.owner, c.repo, err)
	}

	logRateLimit(resp, "issues/create")
	return mapIssue(issue), nil
}

// GetIssue fetches an issue by number.
func (c *Client) GetIssue(ctx context.Context, cred model.InstallationCredential, number int) (model.Issue, error) {
	issue, resp, err := c.api(cred).Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return model.Issue{}, fmt.Errorf("fetching issue %s/%s#%d: %w", c.owner, c.repo, number, err)
	}

	logRateLimit(resp, "issues/get")
	return mapIssue(issue), nil
}

// UpdateIssue replaces the title and body of an issue. Other fields are left untouched.
func (c *Client) UpdateIssue(ctx context.Context, cred model.InstallationCredential, number int, title, body string) error {
	_, resp, err := c.api(cred).Issues.Edit(ctx, c.owner, c.repo, number, &gh.IssueRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("updating issue %s/%s#%d: %w", c.owner, c.repo, number, err)
	}

	logRateLimit(resp, "issues/edit")
	return nil
}

// CreateComment adds a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, cred model.InstallationCredential, number int, body string) error {
	_, resp, err := c.api(cred).Issues.CreateComment(ctx, c.owner, c.repo, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating comment on %s/%s#%d: %w", c.owner, c.repo, number, err)
	}

	logRateLimit(resp, "issues/comment")
	return nil
}

// api returns a go-github client that authenticates with cred.
func (c *Client) api(cred model.InstallationCredential) *gh.Client {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Token, TokenType: "Bearer"}),
			Base:   c.transport,
		},
	}

	client := gh.NewClient(httpClient)
	u := *c.baseURL
	client.BaseURL = &u
	return client
}

// mapIssue converts a go-github Issue to a domain model Issue.
func mapIssue(issue *gh.Issue) model.Issue {
	return model.Issue{
		ID:     issue.GetID(),
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		URL:    issue.GetHTMLURL(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// parseBaseURL parses a REST base URL, defaulting to github.com. go-github
// requires the trailing slash.
func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return u, nil
}
