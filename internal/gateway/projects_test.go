package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// setupProjectFetcher creates a ProjectFetcher whose GraphQL client talks to a mock server.
func setupProjectFetcher(t *testing.T, handler http.Handler) (*ProjectFetcher, *httptest.Server) {
	server := httptest.NewServer(handler)
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())
	fetcher := NewProjectFetcher(graphqlClient, config.GitHubConfig{
		Organization:   "acme",
		ProjectNumber:  7,
		FinishedColumn: "Done",
		StatusField:    "Status",
	}, discardLogger())
	return fetcher, server
}

func issueNode(status string, number int, closedAt string) string {
	statusJSON := "null"
	if status != "" {
		statusJSON = fmt.Sprintf(`{"name": %q}`, status)
	}
	closedJSON := "null"
	if closedAt != "" {
		closedJSON = fmt.Sprintf("%q", closedAt)
	}
	return fmt.Sprintf(`{"fieldValueByName": %s, "content": {"__typename": "Issue", "title": "Issue %d",
		"url": "https://github.com/acme/app/issues/%d", "number": %d, "closedAt": %s}}`,
		statusJSON, number, number, number, closedJSON)
}

func itemsPage(hasNext bool, cursor string, nodes ...string) string {
	return fmt.Sprintf(`{"data": {"organization": {"projectV2": {"title": "Maintenance", "items": {
		"pageInfo": {"hasNextPage": %t, "endCursor": %q}, "nodes": [%s]}}}}}`,
		hasNext, cursor, strings.Join(nodes, ","))
}

func date(value string) *time.Time {
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		panic(err)
	}
	return &parsed
}

func TestProjectFetcher_FetchCompletedIssues(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expected       []domain.IssueRecord
		expectedErr    error
		expectedErrMsg string
	}{
		{
			name: "keeps only finished items, most recently closed first",
			responseBody: itemsPage(false, "c1",
				issueNode("Done", 1, "2024-01-01T00:00:00Z"),
				issueNode("In Progress", 2, ""),
				issueNode("Done", 3, "2024-03-01T00:00:00Z"),
				issueNode("Done", 4, "2024-02-01T00:00:00Z"),
			),
			expected: []domain.IssueRecord{
				{Title: "Issue 3", Number: 3, URL: "https://github.com/acme/app/issues/3", Kind: domain.KindIssue, ClosedAt: date("2024-03-01")},
				{Title: "Issue 4", Number: 4, URL: "https://github.com/acme/app/issues/4", Kind: domain.KindIssue, ClosedAt: date("2024-02-01")},
				{Title: "Issue 1", Number: 1, URL: "https://github.com/acme/app/issues/1", Kind: domain.KindIssue, ClosedAt: date("2024-01-01")},
			},
		},
		{
			name: "status match is case-sensitive",
			responseBody: itemsPage(false, "c1",
				issueNode("done", 1, "2024-01-01T00:00:00Z"),
				issueNode("Done", 2, "2024-01-02T00:00:00Z"),
			),
			expected: []domain.IssueRecord{
				{Title: "Issue 2", Number: 2, URL: "https://github.com/acme/app/issues/2", Kind: domain.KindIssue, ClosedAt: date("2024-01-02")},
			},
		},
		{
			name: "pull requests are kept and drafts are skipped",
			responseBody: itemsPage(false, "c1",
				`{"fieldValueByName": {"name": "Done"}, "content": {"__typename": "PullRequest", "title": "Speed up build",
					"url": "https://github.com/acme/app/pull/9", "number": 9, "closedAt": "2024-05-01T00:00:00Z"}}`,
				`{"fieldValueByName": {"name": "Done"}, "content": {"__typename": "DraftIssue", "title": "Idea"}}`,
			),
			expected: []domain.IssueRecord{
				{Title: "Speed up build", Number: 9, URL: "https://github.com/acme/app/pull/9", Kind: domain.KindPullRequest, ClosedAt: date("2024-05-01")},
			},
		},
		{
			name:         "empty board",
			responseBody: itemsPage(false, ""),
			expected:     []domain.IssueRecord{},
		},
		{
			name: "item without status is a data integrity error",
			responseBody: itemsPage(false, "c1",
				issueNode("Done", 1, "2024-01-01T00:00:00Z"),
				issueNode("", 2, ""),
			),
			expectedErr:    domain.ErrDataIntegrity,
			expectedErrMsg: "issue #2",
		},
		{
			name:           "unknown project is a resolution error",
			responseBody:   `{"data": {"organization": {"projectV2": null}}, "errors": [{"type": "NOT_FOUND", "message": "Could not resolve to a ProjectV2 with the number 7."}]}`,
			expectedErr:    domain.ErrResolution,
			expectedErrMsg: "ProjectV2 with the number 7",
		},
		{
			name:           "other GraphQL errors are passed through",
			responseBody:   `{"errors": [{"message": "Something went wrong"}]}`,
			expectedErrMsg: "failed to execute GraphQL query",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), `"login":"acme"`)
				assert.Contains(t, string(body), `"statusField":"Status"`)

				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			fetcher, server := setupProjectFetcher(t, http.HandlerFunc(handler))
			defer server.Close()

			records, err := fetcher.FetchCompletedIssues(context.Background())
			if tc.expectedErrMsg != "" {
				require.Error(t, err)
				assert.Nil(t, records)
				if tc.expectedErr != nil {
					assert.ErrorIs(t, err, tc.expectedErr)
				}
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, records)
		})
	}
}

func TestProjectFetcher_FollowsPagination(t *testing.T) {
	calls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		calls++

		w.WriteHeader(http.StatusOK)
		if calls == 1 {
			assert.Contains(t, string(body), `"cursor":null`)
			fmt.Fprint(w, itemsPage(true, "page-2", issueNode("Done", 1, "2024-01-01T00:00:00Z")))
			return
		}
		assert.Contains(t, string(body), `"cursor":"page-2"`)
		fmt.Fprint(w, itemsPage(false, "page-3", issueNode("Done", 2, "2024-06-01T00:00:00Z")))
	}
	fetcher, server := setupProjectFetcher(t, http.HandlerFunc(handler))
	defer server.Close()

	records, err := fetcher.FetchCompletedIssues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Number)
	assert.Equal(t, 1, records[1].Number)
}

func TestSortByClosedAtDesc(t *testing.T) {
	records := []domain.IssueRecord{
		{Number: 1},
		{Number: 2, ClosedAt: date("2024-01-01")},
		{Number: 3},
		{Number: 4, ClosedAt: date("2024-03-01")},
		{Number: 5, ClosedAt: date("2024-01-01")},
	}

	sortByClosedAtDesc(records)

	numbers := make([]int, len(records))
	for i, r := range records {
		numbers[i] = r.Number
	}
	assert.Equal(t, []int{4, 2, 5, 1, 3}, numbers)
}
