// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// IssueFetcher defines the behavior of a gateway for collecting the completed
// issues of a project board.
type IssueFetcher interface {
	// FetchCompletedIssues returns the records in report order.
	FetchCompletedIssues(ctx context.Context) ([]domain.IssueRecord, error)
}

// New creates the IssueFetcher selected by the configuration: a project
// number targets ProjectV2 over GraphQL, a project name targets a classic
// project board over REST.
func New(cfg *config.Config, logger *log.Logger) (IssueFetcher, error) {
	httpClient, err := newHTTPClient(cfg.GitHub.Token)
	if err != nil {
		return nil, err
	}
	logger.Printf("GitHub configuration: domain=%s strategy=%s token_length=%d\n",
		cfg.GitHub.Domain, cfg.Strategy(), len(cfg.GitHub.Token))

	switch cfg.Strategy() {
	case config.StrategyProjectItems:
		graphqlClient := githubv4.NewClient(httpClient)
		if cfg.GitHub.Domain != config.DefaultDomain {
			graphqlClient = githubv4.NewEnterpriseClient(fmt.Sprintf("https://%s/api/graphql", cfg.GitHub.Domain), httpClient)
		}
		return NewProjectFetcher(graphqlClient, cfg.GitHub, logger), nil
	default:
		restClient := github.NewClient(httpClient)
		if cfg.GitHub.Domain != config.DefaultDomain {
			baseURL := fmt.Sprintf("https://%s/api/v3/", cfg.GitHub.Domain)
			restClient, err = restClient.WithEnterpriseURLs(baseURL, baseURL)
			if err != nil {
				return nil, fmt.Errorf("invalid github api url: %w", err)
			}
		}
		return NewColumnFetcher(restClient, cfg.GitHub, logger), nil
	}
}

// newHTTPClient authenticates every request with the bearer token and waits
// out GitHub's secondary rate limits.
func newHTTPClient(token string) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}, nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
