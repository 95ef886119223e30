// Package main provides the CLI entry point for sheetform.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/javajack/sheetform"
	"github.com/javajack/sheetform/internal/config"
	"github.com/javajack/sheetform/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	outputPath   string
	templateDir  string
	templateURL  string
	format       string
	mappingsFile string
	asJSON       bool
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "sheetform",
		Short: "Fill document templates from spreadsheet data",
		Long: `sheetform reads a workbook whose sheets are named after templates,
maps each sheet's label/value rows onto that template's fields and
writes the filled documents, one file or a zip archive.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&templateDir, "templates", "", "Template directory (overrides TEMPLATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&templateURL, "template-url", "", "Base URL of templates (overrides TEMPLATE_URL)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "Template format: pdf or xlsx (overrides TEMPLATE_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&mappingsFile, "mappings", "", "YAML mapping file (overrides MAPPINGS_FILE)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload and download service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	fillCmd := &cobra.Command{
		Use:   "fill [workbook.xlsx]",
		Short: "Fill the templates named by a workbook's sheets",
		Args:  cobra.ExactArgs(1),
		RunE:  runFill,
	}
	fillCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: the artifact's own name)")

	fieldsCmd := &cobra.Command{
		Use:   "fields [template]",
		Short: "List a template's fields and the labels mapped onto them",
		Args:  cobra.ExactArgs(1),
		RunE:  runFields,
	}
	fieldsCmd.Flags().BoolVar(&asJSON, "json", false, "Print fields as JSON")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every mapping table against its template",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}

	rootCmd.AddCommand(serveCmd, fillCmd, fieldsCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and builds the logger and filler.
func setup() (*config.Config, *zap.Logger, *sheetform.Filler, error) {
	cfg, err := config.Load(applyFlags)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	filler, err := newFiller(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, filler, nil
}

func applyFlags(cfg *config.Config) {
	if templateDir != "" {
		cfg.Templates.Dir = templateDir
	}
	if templateURL != "" {
		cfg.Templates.URL = templateURL
	}
	if format != "" {
		cfg.Templates.Format = format
	}
	if mappingsFile != "" {
		cfg.Templates.MappingsFile = mappingsFile
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, filler, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.New(filler, server.Config{
			MaxUploads:     cfg.Server.MaxUploads,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}, logger),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runFill(cmd *cobra.Command, args []string) error {
	_, logger, filler, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer in.Close()

	artifact, err := filler.FillWorkbook(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	path := outputPath
	if path == "" {
		path = artifact.FileName
	}
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	for _, r := range artifact.Results {
		for _, w := range r.Warnings() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", r.Template, w.Err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runFields(cmd *cobra.Command, args []string) error {
	_, logger, filler, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if asJSON {
		fields, err := filler.Fields(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	}
	text, err := filler.Describe(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, logger, filler, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	issues, err := filler.Validate(cmd.Context())
	if err != nil {
		return err
	}
	errs := 0
	for _, issue := range issues {
		fmt.Fprintln(cmd.OutOrStdout(), issue.String())
		if issue.Severity == sheetform.SeverityError {
			errs++
		}
	}
	if errs > 0 {
		return fmt.Errorf("%d template(s) failed validation", errs)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d mapping table(s) OK\n", len(filler.Registry().Templates()))
	return nil
}
