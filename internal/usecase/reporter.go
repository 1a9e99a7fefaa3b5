// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dataheck/maintenanace-issue-report/internal/domain"
	"github.com/dataheck/maintenanace-issue-report/internal/gateway"
	"github.com/dataheck/maintenanace-issue-report/internal/printer"
)

// Assembler turns the collected issues into the report document.
type Assembler interface {
	Assemble(issues []domain.IssueRecord) error
}

// Result describes a completed run.
type Result struct {
	Issues []domain.IssueRecord
	// PDFs lists the files written by the printer, in report order.
	PDFs []string
}

// Reporter is the use case for producing a maintenance report.
// It runs the fetch, print and assemble steps in sequence.
type Reporter struct {
	fetcher      gateway.IssueFetcher
	assembler    Assembler
	printer      printer.Printer
	saveDir      string
	loginTimeout time.Duration
	logger       *log.Logger
}

// Option customizes a Reporter.
type Option func(*Reporter)

// WithPrinter enables printing every issue page into saveDir once a login
// is detected within loginTimeout.
func WithPrinter(p printer.Printer, saveDir string, loginTimeout time.Duration) Option {
	return func(r *Reporter) {
		r.printer = p
		r.saveDir = saveDir
		r.loginTimeout = loginTimeout
	}
}

// NewReporter creates a new Reporter instance.
func NewReporter(fetcher gateway.IssueFetcher, assembler Assembler, logger *log.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		fetcher:   fetcher,
		assembler: assembler,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs the main business logic. Any failure aborts the run; PDFs
// already written are left in place and no report is produced.
func (r *Reporter) Run(ctx context.Context) (*Result, error) {
	r.logger.Println("Usecase: Fetching completed issues...")
	issues, err := r.fetcher.FetchCompletedIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed issues: %w", err)
	}
	r.logger.Printf("Usecase: %d completed issues found.\n", len(issues))

	result := &Result{Issues: issues}
	if r.printer != nil {
		pdfs, err := r.printAll(ctx, issues)
		if err != nil {
			return nil, err
		}
		result.PDFs = pdfs
	}

	r.logger.Println("Usecase: Assembling report...")
	if err := r.assembler.Assemble(issues); err != nil {
		return nil, fmt.Errorf("failed to assemble report: %w", err)
	}
	return result, nil
}

func (r *Reporter) printAll(ctx context.Context, issues []domain.IssueRecord) ([]string, error) {
	if err := r.printer.ConfigureSaveDestination(ctx, r.saveDir); err != nil {
		return nil, err
	}
	if err := r.printer.WaitForSession(ctx, r.loginTimeout); err != nil {
		return nil, err
	}

	var pdfs []string
	for i, issue := range issues {
		r.logger.Printf("Usecase: Printing %s (%d/%d)\n", issue.Label(), i+1, len(issues))
		path, err := r.printer.NavigateAndPrint(ctx, issue.URL, issue.PDFName(i+1))
		if err != nil {
			return nil, fmt.Errorf("failed to print %s: %w", issue.Label(), err)
		}
		if path != "" {
			pdfs = append(pdfs, path)
		}
	}
	return pdfs, nil
}

// PrepareSaveDir makes sure the PDF directory exists. A missing directory
// is created only when its parent already exists.
func PrepareSaveDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", domain.ErrOutputPath, path)
		}
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", domain.ErrOutputPath, err)
	}

	parent := filepath.Dir(filepath.Clean(path))
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s does not exist and neither does its parent %s", domain.ErrOutputPath, path, parent)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOutputPath, err)
	}
	return nil
}
