package sheetform

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// ArchiveContentType is the media type of a multi-template artifact.
const ArchiveContentType = "application/zip"

// Artifact is the downloadable output of a batch: one document or a zip of several.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
	Results     []*TemplateResult
}

// RunBatch fills every template of batch in sheet order and packages the
// results. The first template that fails aborts the batch: the error names the
// template and no artifact is returned. An empty batch yields ErrNoDataUploaded.
func (f *Filler) RunBatch(ctx context.Context, batch *Batch) (*Artifact, error) {
	if batch.Len() == 0 {
		return nil, ErrNoDataUploaded
	}
	start := time.Now()

	results := make([]*TemplateResult, 0, batch.Len())
	for _, res := range batch.Resolutions() {
		if f.opts.onlyKnownTemplates && !res.TableFound {
			f.opts.logger.Info("sheet skipped, no mapping table", zap.String("template", res.Template))
			continue
		}
		r, err := f.FillTemplate(ctx, res.Template, res.Values)
		if err != nil {
			f.opts.logger.Error("batch aborted", zap.String("template", res.Template), zap.Error(err))
			return nil, err
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no sheet matches a known template", ErrNoDataUploaded)
	}

	artifact, err := f.packageResults(results)
	if err != nil {
		return nil, err
	}
	f.opts.logger.Info("batch complete",
		zap.String("file", artifact.FileName),
		zap.Int("templates", len(results)),
		zap.Int("bytes", len(artifact.Data)),
		zap.Duration("elapsed", time.Since(start)))
	return artifact, nil
}

// packageResults returns the single document or a zip with one entry per template.
func (f *Filler) packageResults(results []*TemplateResult) (*Artifact, error) {
	if len(results) == 1 && f.opts.singleDocument {
		r := results[0]
		return &Artifact{
			FileName:    r.FileName,
			ContentType: f.opts.model.ContentType(),
			Data:        r.Data,
			Results:     results,
		}, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, r := range results {
		w, err := zw.Create(r.FileName)
		if err != nil {
			return nil, fmt.Errorf("package archive: add %q: %w", r.FileName, err)
		}
		if _, err := w.Write(r.Data); err != nil {
			return nil, fmt.Errorf("package archive: write %q: %w", r.FileName, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("package archive: %w", err)
	}
	return &Artifact{
		FileName:    f.opts.archiveName,
		ContentType: ArchiveContentType,
		Data:        buf.Bytes(),
		Results:     results,
	}, nil
}

// FillWorkbook reads a workbook from r, resolves it and runs the batch.
func (f *Filler) FillWorkbook(ctx context.Context, r io.Reader) (*Artifact, error) {
	wb, err := ReadWorkbook(r)
	if err != nil {
		return nil, err
	}
	return f.RunBatch(ctx, f.Resolve(wb))
}

// Fill processes the workbook at workbookPath and writes the artifact to outputPath.
// An empty outputPath writes the artifact's own file name in the current directory.
// It returns the path written.
func Fill(ctx context.Context, workbookPath, outputPath string, opts ...Option) (string, error) {
	in, err := os.Open(workbookPath)
	if err != nil {
		return "", fmt.Errorf("open workbook %q: %w", workbookPath, err)
	}
	defer in.Close()

	artifact, err := NewFiller(opts...).FillWorkbook(ctx, in)
	if err != nil {
		return "", err
	}
	if outputPath == "" {
		outputPath = artifact.FileName
	}
	if err := os.WriteFile(outputPath, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write output %q: %w", outputPath, err)
	}
	return outputPath, nil
}
