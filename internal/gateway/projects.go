package gateway

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// projectItemsQuery pages through the items of an organization's ProjectV2,
// most recently positioned first, together with each item's status value.
type projectItemsQuery struct {
	Organization struct {
		ProjectV2 struct {
			Title string
			Items struct {
				PageInfo struct {
					HasNextPage bool
					EndCursor   githubv4.String
				}
				Nodes []projectItem
			} `graphql:"items(first: 100, after: $cursor, orderBy: {field: POSITION, direction: DESC})"`
		} `graphql:"projectV2(number: $number)"`
	} `graphql:"organization(login: $login)"`
}

type projectItem struct {
	FieldValueByName struct {
		SingleSelect struct {
			Name string
		} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	} `graphql:"fieldValueByName(name: $statusField)"`
	Content struct {
		Typename    string      `graphql:"__typename"`
		Issue       itemContent `graphql:"... on Issue"`
		PullRequest itemContent `graphql:"... on PullRequest"`
	}
}

type itemContent struct {
	Title    string
	URL      string
	Number   int
	ClosedAt githubv4.DateTime
}

// ProjectFetcher collects the items of a ProjectV2 board whose status field
// holds the finished value.
type ProjectFetcher struct {
	graphqlClient *githubv4.Client
	organization  string
	number        int
	statusField   string
	finished      string
	logger        *log.Logger
}

// NewProjectFetcher creates a ProjectFetcher for the configured organization
// and project number.
func NewProjectFetcher(graphqlClient *githubv4.Client, cfg config.GitHubConfig, logger *log.Logger) *ProjectFetcher {
	return &ProjectFetcher{
		graphqlClient: graphqlClient,
		organization:  cfg.Organization,
		number:        cfg.ProjectNumber,
		statusField:   cfg.StatusField,
		finished:      cfg.FinishedColumn,
		logger:        logger,
	}
}

// FetchCompletedIssues returns the finished items, most recently closed first.
func (f *ProjectFetcher) FetchCompletedIssues(ctx context.Context) ([]domain.IssueRecord, error) {
	f.logger.Printf("[1/2] Fetching items of project %d in %q using GraphQL API...\n", f.number, f.organization)
	items, err := f.fetchItems(ctx)
	if err != nil {
		return nil, err
	}

	f.logger.Printf("[2/2] Selecting items with %s %q...\n", f.statusField, f.finished)
	records, err := f.selectFinished(items)
	if err != nil {
		return nil, err
	}
	f.logger.Printf("Completed fetching %d of %d project items.\n", len(records), len(items))
	return records, nil
}

func (f *ProjectFetcher) fetchItems(ctx context.Context) ([]projectItem, error) {
	variables := map[string]interface{}{
		"login":       githubv4.String(f.organization),
		"number":      githubv4.Int(f.number),
		"statusField": githubv4.String(f.statusField),
		"cursor":      (*githubv4.String)(nil),
	}

	var items []projectItem
	for {
		var q projectItemsQuery
		if err := f.graphqlClient.Query(ctx, &q, variables); err != nil {
			if strings.Contains(err.Error(), "Could not resolve to") {
				return nil, fmt.Errorf("%w: %v, please verify configuration", domain.ErrResolution, err)
			}
			return nil, fmt.Errorf("failed to execute GraphQL query for project items: %w", err)
		}
		items = append(items, q.Organization.ProjectV2.Items.Nodes...)
		if !q.Organization.ProjectV2.Items.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Organization.ProjectV2.Items.PageInfo.EndCursor)
		f.logger.Println("  Fetching next page of project items...")
	}
	return items, nil
}

// selectFinished keeps the items whose status equals the finished value
// exactly. Every item must carry a status.
func (f *ProjectFetcher) selectFinished(items []projectItem) ([]domain.IssueRecord, error) {
	records := make([]domain.IssueRecord, 0, len(items))
	for i, item := range items {
		status := item.FieldValueByName.SingleSelect.Name
		if status == "" {
			return nil, fmt.Errorf("%w: could not determine %s for project item %d (%s)",
				domain.ErrDataIntegrity, f.statusField, i+1, item.describe())
		}
		if status != f.finished {
			continue
		}

		var content itemContent
		var kind domain.IssueKind
		switch item.Content.Typename {
		case "Issue":
			content, kind = item.Content.Issue, domain.KindIssue
		case "PullRequest":
			content, kind = item.Content.PullRequest, domain.KindPullRequest
		default:
			f.logger.Printf("  Skipping %s item %d, it has no issue number.\n", item.describe(), i+1)
			continue
		}

		record := domain.IssueRecord{
			Title:  content.Title,
			Number: content.Number,
			URL:    content.URL,
			Kind:   kind,
		}
		if !content.ClosedAt.IsZero() {
			closedAt := content.ClosedAt.Time
			record.ClosedAt = &closedAt
		}
		records = append(records, record)
	}

	sortByClosedAtDesc(records)
	return records, nil
}

func (item projectItem) describe() string {
	switch item.Content.Typename {
	case "Issue":
		return fmt.Sprintf("issue #%d", item.Content.Issue.Number)
	case "PullRequest":
		return fmt.Sprintf("pull request #%d", item.Content.PullRequest.Number)
	case "":
		return "inaccessible"
	default:
		return item.Content.Typename
	}
}

// sortByClosedAtDesc orders records most recently closed first. Records
// without a close time go last and ties keep board order.
func sortByClosedAtDesc(records []domain.IssueRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return closedAfter(records[i].ClosedAt, records[j].ClosedAt)
	})
}

func closedAfter(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
