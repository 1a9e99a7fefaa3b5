// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"time"
)

// IssueKind tells whether a record was collected from an issue or a pull request.
type IssueKind string

const (
	KindIssue       IssueKind = "Issue"
	KindPullRequest IssueKind = "PullRequest"
)

// IssueRecord is one completed work item taken from the project board.
// It is the core domain entity of this application.
type IssueRecord struct {
	Title  string
	Number int
	URL    string
	Kind   IssueKind
	// ClosedAt is only known to the project-items (GraphQL) strategy.
	ClosedAt *time.Time
}

// Label renders the hash-prefixed issue number used as hyperlink text.
func (r IssueRecord) Label() string {
	return fmt.Sprintf("#%d", r.Number)
}

// PDFName is the file name a printed copy of the record is saved under.
// The position prefix keeps the files in report order.
func (r IssueRecord) PDFName(position int) string {
	return fmt.Sprintf("%03d-issue-%d.pdf", position, r.Number)
}
