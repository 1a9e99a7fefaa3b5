// Package cmd contains the CLI entrypoint of the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
	"github.com/dataheck/maintenanace-issue-report/internal/credential"
	"github.com/dataheck/maintenanace-issue-report/internal/gateway"
	"github.com/dataheck/maintenanace-issue-report/internal/printer"
	"github.com/dataheck/maintenanace-issue-report/internal/report"
	"github.com/dataheck/maintenanace-issue-report/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "maintenance-issue-report",
	Short: "Builds a client maintenance report from a GitHub project board.",
	Long: `maintenance-issue-report collects the issues in the finished column of a
GitHub project board and lists them, hyperlinked, in a Word cover document
built from a template. With --enable-print every issue page is also saved
as a PDF through a Chrome window you log in to.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("enable-print", false, "Save every completed issue page as a PDF")
	rootCmd.Flags().String("env", ".env", "Path to the settings file")
	rootCmd.Flags().Bool("use-keyring", false, "Read "+config.KeyAPIKey+" from the system keyring when it is not set")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
	if verbose {
		logger.SetOutput(os.Stderr)
	}

	enablePrint, _ := cmd.Flags().GetBool("enable-print")
	envPath, _ := cmd.Flags().GetString("env")
	useKeyring, _ := cmd.Flags().GetBool("use-keyring")

	var loadOpts []config.Option
	if useKeyring {
		loadOpts = append(loadOpts, config.WithSecretLookup(credential.Get))
	}
	cfg, err := config.Load(envPath, loadOpts...)
	if err != nil {
		return err
	}
	logger.Printf("Loaded settings from %s (token_length=%d, strategy=%s)\n", envPath, len(cfg.GitHub.Token), cfg.Strategy())

	if enablePrint {
		if err := usecase.PrepareSaveDir(cfg.Print.SaveDir); err != nil {
			return err
		}
	}

	fetcher, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	assembler := report.NewAssembler(cfg.Report, logger)

	var reporterOpts []usecase.Option
	if enablePrint {
		session := printer.NewChrome(printer.Options{
			LoginURL:    cfg.Print.LoginURL,
			SettleDelay: cfg.Print.SettleDelay,
			SaveDelay:   cfg.Print.SaveDelay,
			ChromePath:  cfg.Print.ChromePath,
			Prompt:      cmd.OutOrStdout(),
		}, logger)
		defer func() {
			if err := session.Close(); err != nil {
				logger.Printf("Failed to close browser: %v\n", err)
			}
		}()
		reporterOpts = append(reporterOpts, usecase.WithPrinter(session, cfg.Print.SaveDir, cfg.Print.LoginTimeout))
	}

	result, err := usecase.NewReporter(fetcher, assembler, logger, reporterOpts...).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(result, cfg, enablePrint))
	return nil
}
