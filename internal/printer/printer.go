// Package printer drives a browser session that saves rendered issue pages
// as PDF files after a person has logged in.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// LoginMarker is the meta tag GitHub fills with the login of the signed-in user.
const LoginMarker = "user-login"

const defaultPollInterval = time.Second

// Printer is the print capability the report pipeline depends on.
type Printer interface {
	// ConfigureSaveDestination starts the browser so that printing saves
	// PDF files into dir without a dialog.
	ConfigureSaveDestination(ctx context.Context, dir string) error
	// WaitForSession opens the login page and blocks until a login is
	// detected or the timeout passes.
	WaitForSession(ctx context.Context, timeout time.Duration) error
	// NavigateAndPrint saves the page at url as fileName and returns the
	// saved path. The path is empty when the browser chose the name.
	NavigateAndPrint(ctx context.Context, url, fileName string) (string, error)
	// Close ends the browser session. It is safe to call more than once.
	Close() error
}

// browser is the slice of a browser engine a Session drives.
type browser interface {
	Navigate(ctx context.Context, url string) error
	MetaContent(ctx context.Context, name string) (string, error)
	PrintToPDF(ctx context.Context) ([]byte, error)
	// NativePrint triggers window.print(), which kiosk printing turns into
	// a silent save into the configured directory.
	NativePrint(ctx context.Context) error
	Close() error
}

// launcher starts a browser whose print destination is saveDir.
type launcher func(ctx context.Context, saveDir string) (browser, error)

type state int

const (
	stateUninitialized state = iota
	stateConfigured
	stateAwaitingLogin
	stateLoggedIn
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateConfigured:
		return "session configured"
	case stateAwaitingLogin:
		return "awaiting login"
	case stateLoggedIn:
		return "logged in"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Session.
type Options struct {
	LoginURL string
	// SettleDelay is waited after each navigation before printing.
	SettleDelay time.Duration
	// SaveDelay is waited after a native print.
	SaveDelay  time.Duration
	ChromePath string
	// Prompt receives the instructions for the person at the keyboard.
	Prompt io.Writer
}

// Session implements Printer on top of a browser. It walks through
// uninitialized, configured, awaiting login, logged in and closed; each
// operation is only valid in its own state.
type Session struct {
	launch       launcher
	browser      browser
	opts         Options
	pollInterval time.Duration
	saveDir      string
	state        state
	logger       *log.Logger
}

// NewChrome creates a Session backed by a visible Chrome window.
func NewChrome(opts Options, logger *log.Logger) *Session {
	return newSession(func(ctx context.Context, saveDir string) (browser, error) {
		return launchChrome(ctx, saveDir, opts.ChromePath, logger)
	}, opts, logger)
}

func newSession(launch launcher, opts Options, logger *log.Logger) *Session {
	if opts.Prompt == nil {
		opts.Prompt = io.Discard
	}
	return &Session{
		launch:       launch,
		opts:         opts,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
}

func (s *Session) expect(want state, op string) error {
	if s.state != want {
		return fmt.Errorf("cannot %s: browser session is %s, want %s", op, s.state, want)
	}
	return nil
}

// ConfigureSaveDestination implements Printer.
func (s *Session) ConfigureSaveDestination(ctx context.Context, dir string) error {
	if err := s.expect(stateUninitialized, "configure save destination"); err != nil {
		return err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOutputPath, err)
	}
	info, err := os.Stat(absDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrOutputPath, absDir)
	}

	b, err := s.launch(ctx, absDir)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	s.browser = b
	s.saveDir = absDir
	s.state = stateConfigured
	s.logger.Printf("Browser started, PDFs are saved to %s\n", absDir)
	return nil
}

// WaitForSession implements Printer.
func (s *Session) WaitForSession(ctx context.Context, timeout time.Duration) error {
	if err := s.expect(stateConfigured, "wait for login"); err != nil {
		return err
	}
	s.state = stateAwaitingLogin

	if err := s.browser.Navigate(ctx, s.opts.LoginURL); err != nil {
		return fmt.Errorf("failed to open login page %s: %w", s.opts.LoginURL, err)
	}
	fmt.Fprintln(s.opts.Prompt, "Please login to GitHub in the open window.")

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	login, err := pollMarker(waitCtx, s.pollInterval, func(ctx context.Context) (string, error) {
		return s.browser.MetaContent(ctx, LoginMarker)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: no login detected within %s", domain.ErrSession, timeout)
	}

	s.state = stateLoggedIn
	s.logger.Printf("Logged in as %s\n", login)
	return nil
}

// NavigateAndPrint implements Printer.
func (s *Session) NavigateAndPrint(ctx context.Context, url, fileName string) (string, error) {
	if err := s.expect(stateLoggedIn, "print "+url); err != nil {
		return "", err
	}
	if err := s.browser.Navigate(ctx, url); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", url, err)
	}
	if err := sleep(ctx, s.opts.SettleDelay); err != nil {
		return "", err
	}

	pdf, err := s.browser.PrintToPDF(ctx)
	if err != nil {
		s.logger.Printf("  Rendering %s to PDF failed (%v), falling back to the print dialog.\n", url, err)
		if err := s.browser.NativePrint(ctx); err != nil {
			return "", fmt.Errorf("failed to print %s: %w", url, err)
		}
		return "", sleep(ctx, s.opts.SaveDelay)
	}

	path := filepath.Join(s.saveDir, fileName)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	s.logger.Printf("  Saved %s (%s)\n", path, humanize.Bytes(uint64(len(pdf))))
	return path, nil
}

// Close implements Printer.
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

// pollMarker calls read until it returns a non-empty value or ctx ends.
// Read errors count as "not yet": the page may be between navigations.
func pollMarker(ctx context.Context, interval time.Duration, read func(context.Context) (string, error)) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if value, err := read(ctx); err == nil && value != "" {
			return value, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Printer = (*Session)(nil)

// errNotLaunched is returned by browser operations after Close.
var errNotLaunched = errors.New("browser is not running")
