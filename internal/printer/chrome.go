package printer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const saveAsPDF = "Save as PDF"

// chromeBrowser is a visible Chrome window controlled over the DevTools protocol.
type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	profileDir  string
	logger      *log.Logger
}

// launchChrome starts Chrome with a throwaway profile whose print preview
// defaults to saving PDFs into saveDir, and with kiosk printing so
// window.print() never shows a dialog.
func launchChrome(ctx context.Context, saveDir, execPath string, logger *log.Logger) (browser, error) {
	profileDir, err := os.MkdirTemp("", "maintenance-report-chrome-")
	if err != nil {
		return nil, fmt.Errorf("failed to create browser profile: %w", err)
	}
	if err := writePreferences(profileDir, saveDir); err != nil {
		os.RemoveAll(profileDir)
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("kiosk-printing", true),
		chromedp.UserDataDir(profileDir),
		chromedp.WindowSize(1280, 1024),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Printf))

	// An empty run starts the process, so a missing executable fails here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		os.RemoveAll(profileDir)
		return nil, err
	}

	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		profileDir:  profileDir,
		logger:      logger,
	}, nil
}

// writePreferences seeds the profile's Preferences file with the print
// destination settings Chrome reads on startup.
func writePreferences(profileDir, saveDir string) error {
	appState, err := json.Marshal(map[string]any{
		"recentDestinations": []map[string]string{{
			"id":      saveAsPDF,
			"origin":  "local",
			"account": "",
		}},
		"selectedDestinationId": saveAsPDF,
		"version":               2,
	})
	if err != nil {
		return err
	}
	selectionRules, err := json.Marshal(map[string]string{
		"kind":        "local",
		"idPattern":   "*",
		"namePattern": saveAsPDF,
	})
	if err != nil {
		return err
	}

	prefs, err := json.Marshal(map[string]any{
		"printing": map[string]any{
			"print_preview_sticky_settings": map[string]string{
				"appState": string(appState),
			},
			"default_destination_selection_rules": string(selectionRules),
		},
		"savefile": map[string]string{
			"default_directory": saveDir,
		},
		"download": map[string]any{
			"default_directory":   saveDir,
			"prompt_for_download": false,
		},
	})
	if err != nil {
		return err
	}

	defaultDir := filepath.Join(profileDir, "Default")
	if err := os.MkdirAll(defaultDir, 0o700); err != nil {
		return fmt.Errorf("failed to create browser profile: %w", err)
	}
	if err := os.WriteFile(filepath.Join(defaultDir, "Preferences"), prefs, 0o600); err != nil {
		return fmt.Errorf("failed to write browser preferences: %w", err)
	}
	return nil
}

// run executes actions on the browser tab and aborts them when ctx ends.
func (b *chromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	if b.ctx.Err() != nil {
		return errNotLaunched
	}
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (b *chromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *chromeBrowser) MetaContent(ctx context.Context, name string) (string, error) {
	var content string
	script := fmt.Sprintf(`(document.querySelector('meta[name=%q]') || {}).content || ""`, name)
	if err := b.run(ctx, chromedp.Evaluate(script, &content)); err != nil {
		return "", err
	}
	return content, nil
}

func (b *chromeBrowser) PrintToPDF(ctx context.Context) ([]byte, error) {
	var pdf []byte
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
		if err != nil {
			return err
		}
		pdf = data
		return nil
	}))
	return pdf, err
}

func (b *chromeBrowser) NativePrint(ctx context.Context) error {
	return b.run(ctx, chromedp.Evaluate(`window.print();`, nil))
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if rmErr := os.RemoveAll(b.profileDir); rmErr != nil {
		b.logger.Printf("Could not remove browser profile %s: %v\n", b.profileDir, rmErr)
	}
	return err
}
