package main

import (
	"fmt"
	"net/http"

	"github.com/javajack/sheetform"
	"github.com/javajack/sheetform/form"
	"github.com/javajack/sheetform/internal/config"
	"github.com/javajack/sheetform/pdfform"
	"github.com/javajack/sheetform/xlsxform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a production logger at level, or a development logger for debug.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func newModel(format string) (form.Model, error) {
	switch format {
	case config.FormatPDF:
		return pdfform.New(), nil
	case config.FormatXLSX:
		return xlsxform.New(), nil
	}
	return nil, fmt.Errorf("unsupported template format %q", format)
}

// newFiller wires the fill pipeline from cfg.
func newFiller(cfg *config.Config, logger *zap.Logger) (*sheetform.Filler, error) {
	model, err := newModel(cfg.Templates.Format)
	if err != nil {
		return nil, err
	}

	var store sheetform.TemplateStore
	if cfg.Templates.URL != "" {
		client := &http.Client{Timeout: cfg.Templates.FetchTimeout}
		store = sheetform.NewHTTPStore(cfg.Templates.URL, model.Extension(), client)
		logger.Info("templates from http", zap.String("url", cfg.Templates.URL))
	} else {
		store = sheetform.NewDirStore(cfg.Templates.Dir, model.Extension())
		logger.Info("templates from directory", zap.String("dir", cfg.Templates.Dir))
	}

	registry := sheetform.DefaultRegistry()
	if cfg.Templates.MappingsFile != "" {
		registry, err = sheetform.LoadRegistry(cfg.Templates.MappingsFile)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("mapping tables loaded", zap.Strings("templates", registry.Templates()))

	return sheetform.NewFiller(
		sheetform.WithModel(model),
		sheetform.WithTemplateStore(store),
		sheetform.WithRegistry(registry),
		sheetform.WithLogger(logger),
		sheetform.WithArchiveName(cfg.Output.ArchiveName),
		sheetform.WithSingleDocument(cfg.Output.SingleDocument),
		sheetform.WithOnlyKnownTemplates(cfg.Output.OnlyKnownTemplates),
	), nil
}
