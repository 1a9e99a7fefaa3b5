package gateway

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestNew_SelectsStrategy(t *testing.T) {
	testCases := []struct {
		name     string
		github   config.GitHubConfig
		expected IssueFetcher
	}{
		{
			name:     "project number selects the GraphQL fetcher",
			github:   config.GitHubConfig{Token: "t", Domain: "github.com", Organization: "acme", ProjectNumber: 4, FinishedColumn: "Done", StatusField: "Status"},
			expected: &ProjectFetcher{},
		},
		{
			name:     "project name selects the REST fetcher",
			github:   config.GitHubConfig{Token: "t", Domain: "github.com", Organization: "acme", ProjectName: "Maintenance", FinishedColumn: "Done"},
			expected: &ColumnFetcher{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher, err := New(&config.Config{GitHub: tc.github}, discardLogger())
			require.NoError(t, err)
			assert.IsType(t, tc.expected, fetcher)
		})
	}
}

func TestNew_EnterpriseDomain(t *testing.T) {
	cfg := &config.Config{GitHub: config.GitHubConfig{
		Token:          "t",
		Domain:         "github.example.com",
		Organization:   "acme",
		ProjectName:    "Maintenance",
		FinishedColumn: "Done",
	}}

	fetcher, err := New(cfg, discardLogger())
	require.NoError(t, err)

	columns, ok := fetcher.(*ColumnFetcher)
	require.True(t, ok)
	assert.Equal(t, "https://github.example.com/api/v3/", columns.restClient.BaseURL.String())
}
