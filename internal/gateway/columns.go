package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/google/go-github/v62/github"
	"golang.org/x/sync/errgroup"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// cardConcurrency bounds the parallel issue lookups behind a column's cards.
const cardConcurrency = 4

// ColumnFetcher collects the issues filed under the finished column of a
// classic organization project through the REST API.
type ColumnFetcher struct {
	restClient   *github.Client
	organization string
	project      string
	column       string
	logger       *log.Logger
}

// NewColumnFetcher creates a ColumnFetcher for the configured organization,
// project name and finished column.
func NewColumnFetcher(restClient *github.Client, cfg config.GitHubConfig, logger *log.Logger) *ColumnFetcher {
	return &ColumnFetcher{
		restClient:   restClient,
		organization: cfg.Organization,
		project:      cfg.ProjectName,
		column:       cfg.FinishedColumn,
		logger:       logger,
	}
}

// FetchCompletedIssues returns the issues of the finished column in card order.
func (f *ColumnFetcher) FetchCompletedIssues(ctx context.Context) ([]domain.IssueRecord, error) {
	f.logger.Printf("[1/4] Resolving organization %q...\n", f.organization)
	if _, _, err := f.restClient.Organizations.Get(ctx, f.organization); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: organization %q was not found, please verify configuration", domain.ErrResolution, f.organization)
		}
		return nil, fmt.Errorf("failed to fetch organization %q: %w", f.organization, err)
	}

	f.logger.Printf("[2/4] Resolving project %q...\n", f.project)
	projectID, err := f.findProject(ctx)
	if err != nil {
		return nil, err
	}

	f.logger.Printf("[3/4] Resolving column %q...\n", f.column)
	columnID, err := f.findColumn(ctx, projectID)
	if err != nil {
		return nil, err
	}

	f.logger.Println("[4/4] Fetching cards and their issues...")
	cards, err := f.listCards(ctx, columnID)
	if err != nil {
		return nil, err
	}
	records, err := f.resolveCards(ctx, cards)
	if err != nil {
		return nil, err
	}
	f.logger.Printf("Completed fetching %d issues from %d cards.\n", len(records), len(cards))
	return records, nil
}

func (f *ColumnFetcher) findProject(ctx context.Context) (int64, error) {
	opts := &github.ProjectListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		projects, resp, err := f.restClient.Organizations.ListProjects(ctx, f.organization, opts)
		if err != nil {
			return 0, fmt.Errorf("failed to list projects of %q: %w", f.organization, err)
		}
		for _, project := range projects {
			if project.GetName() == f.project {
				return project.GetID(), nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		f.logger.Println("  Fetching next page of projects...")
	}
	return 0, fmt.Errorf("%w: project %q was not found in the organization, please verify configuration", domain.ErrResolution, f.project)
}

func (f *ColumnFetcher) findColumn(ctx context.Context, projectID int64) (int64, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		columns, resp, err := f.restClient.Projects.ListProjectColumns(ctx, projectID, opts)
		if err != nil {
			return 0, fmt.Errorf("failed to list columns of project %q: %w", f.project, err)
		}
		for _, column := range columns {
			if column.GetName() == f.column {
				return column.GetID(), nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return 0, fmt.Errorf("%w: project column %q was not found in the project, please verify configuration", domain.ErrResolution, f.column)
}

func (f *ColumnFetcher) listCards(ctx context.Context, columnID int64) ([]*github.ProjectCard, error) {
	opts := &github.ProjectCardListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var allCards []*github.ProjectCard
	for {
		cards, resp, err := f.restClient.Projects.ListProjectCards(ctx, columnID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list cards of column %q: %w", f.column, err)
		}
		allCards = append(allCards, cards...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		f.logger.Println("  Fetching next page of cards...")
	}
	return allCards, nil
}

// resolveCards looks up the issue behind every card. Lookups run
// concurrently but the result keeps card order.
func (f *ColumnFetcher) resolveCards(ctx context.Context, cards []*github.ProjectCard) ([]domain.IssueRecord, error) {
	resolved := make([]*domain.IssueRecord, len(cards))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cardConcurrency)
	for i, card := range cards {
		i := i
		contentURL := card.GetContentURL()
		if contentURL == "" {
			f.logger.Printf("  Skipping note card %d, it has no linked issue.\n", card.GetID())
			continue
		}
		eg.Go(func() error {
			issue, err := f.fetchContent(egCtx, contentURL)
			if err != nil {
				return err
			}
			kind := domain.KindIssue
			if issue.IsPullRequest() {
				kind = domain.KindPullRequest
			}
			resolved[i] = &domain.IssueRecord{
				Title:  issue.GetTitle(),
				Number: issue.GetNumber(),
				URL:    issue.GetHTMLURL(),
				Kind:   kind,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	records := make([]domain.IssueRecord, 0, len(cards))
	for _, record := range resolved {
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, nil
}

// fetchContent follows a card's content URL, which points at the issues API.
func (f *ColumnFetcher) fetchContent(ctx context.Context, contentURL string) (*github.Issue, error) {
	req, err := f.restClient.NewRequest(http.MethodGet, contentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid card content url %q: %w", contentURL, err)
	}
	issue := new(github.Issue)
	if _, err := f.restClient.Do(ctx, req, issue); err != nil {
		return nil, fmt.Errorf("failed to fetch card content %q: %w", contentURL, err)
	}
	return issue, nil
}
