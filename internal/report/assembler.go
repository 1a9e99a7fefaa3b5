// Package report fills a Word template with the list of completed issues.
package report

import (
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// Custom document properties the template binds its fields to.
const (
	PropertyClientName    = "ClientName"
	PropertyClientContact = "ClientContact"
	PropertyProjectName   = "ProjectName"
)

// ClosingParagraphs follow the issue list in every report.
var ClosingParagraphs = []string{
	"If you have any questions about the above, please do not hesitate to reach out.",
	"Thank you for your business.",
}

// Assembler writes the report document.
type Assembler struct {
	cfg    config.ReportConfig
	logger *log.Logger
}

// NewAssembler creates an Assembler for the configured template and output.
func NewAssembler(cfg config.ReportConfig, logger *log.Logger) *Assembler {
	return &Assembler{cfg: cfg, logger: logger}
}

// Assemble appends one hyperlinked entry per issue, in the order given, then
// the closing paragraphs, sets the client properties and saves the result
// to the configured output path.
func (a *Assembler) Assemble(issues []domain.IssueRecord) error {
	doc, err := OpenDocument(a.cfg.TemplatePath)
	if err != nil {
		return err
	}

	for _, style := range []string{a.cfg.ListStyle, a.cfg.ClosingStyle} {
		if _, err := doc.StyleID(style); err != nil {
			return err
		}
	}

	doc.SetCustomProperty(PropertyClientName, a.cfg.ClientName)
	doc.SetCustomProperty(PropertyClientContact, a.cfg.ClientContact)
	doc.SetCustomProperty(PropertyProjectName, a.cfg.ProjectName)

	for _, issue := range issues {
		if err := doc.AppendHyperlinkedItem(a.cfg.ListStyle, issue.Label(), issue.URL, " - "+issue.Title); err != nil {
			return fmt.Errorf("failed to add %s: %w", issue.Label(), err)
		}
	}
	for _, text := range ClosingParagraphs {
		if err := doc.AppendParagraph(a.cfg.ClosingStyle, text); err != nil {
			return err
		}
	}

	size, err := doc.Save(a.cfg.OutputPath)
	if err != nil {
		return err
	}
	a.logger.Printf("Wrote %s (%d issues, %s)", a.cfg.OutputPath, len(issues), humanize.Bytes(uint64(size)))
	return nil
}
