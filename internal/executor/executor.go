// Package executor extracts mapped archives into their targets and deletes
// archives once they are no longer needed.
package executor

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/schollz/progressbar/v3"

	"github.com/ryanm101/zipmap/internal/archive"
	"github.com/ryanm101/zipmap/internal/logging"
	"github.com/ryanm101/zipmap/internal/mapping"
)

// Op names a batch operation.
type Op string

const (
	OpExtract Op = "extract"
	OpDelete  Op = "delete"
)

// Result is the outcome of a batch. Failures never stop the batch.
type Result struct {
	Op        Op
	Succeeded int
	Failed    int
	Skipped   int   // unassigned entries
	Bytes     int64 // bytes written by extraction
	Done      []mapping.Entry
	Errors    []error
}

// Err joins every failure in the batch, or returns nil.
func (r *Result) Err() error {
	return errors.Join(r.Errors...)
}

func (r *Result) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// Executor performs extraction and deletion on a filesystem.
type Executor struct {
	fs       billy.Filesystem
	progress io.Writer
}

// Option configures an Executor.
type Option func(*Executor)

// WithProgress draws a progress bar on w during extraction.
func WithProgress(w io.Writer) Option {
	return func(e *Executor) {
		e.progress = w
	}
}

// New creates an executor.
func New(fs billy.Filesystem, opts ...Option) *Executor {
	e := &Executor{fs: fs}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// extract decompresses archivePath into dir. Failures are ExtractionErrors.
func (e *Executor) extract(ctx context.Context, archivePath, dir string, onEntry func(string)) (int64, error) {
	n, err := archive.Extract(ctx, e.fs, archivePath, dir, onEntry)
	if err != nil {
		return n, &ExtractionError{Archive: archivePath, Target: dir, Err: err}
	}
	return n, nil
}

// Run extracts every assigned entry in order. Unassigned entries are skipped.
func (e *Executor) Run(ctx context.Context, entries []mapping.Entry) *Result {
	result := &Result{Op: OpExtract}

	bar := e.newBar(ctx, entries)
	for _, entry := range entries {
		if !entry.IsAssigned() {
			result.Skipped++
			continue
		}

		var onEntry func(string)
		if bar != nil {
			bar.Describe(filepath.Base(entry.Source.Path))
			onEntry = func(string) { _ = bar.Add(1) }
		}

		n, err := e.extract(ctx, entry.Source.Path, entry.Target.Path, onEntry)
		result.Bytes += n
		if err != nil {
			logging.Warn("extraction failed", "archive", entry.Source.Path, "target", entry.Target.Path, "error", err)
			result.fail(err)
			continue
		}

		logging.Info("extracted archive", "archive", entry.Source.Path, "target", entry.Target.Path, "bytes", n)
		result.Succeeded++
		result.Done = append(result.Done, entry)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	return result
}

// Delete removes one archive. Failures are DeletionErrors.
func (e *Executor) Delete(archivePath string) error {
	if err := e.fs.Remove(archivePath); err != nil {
		return &DeletionError{Archive: archivePath, Err: err}
	}
	return nil
}

// DeleteMapped removes the archive of every assigned entry in order.
func (e *Executor) DeleteMapped(entries []mapping.Entry) *Result {
	result := &Result{Op: OpDelete}

	for _, entry := range entries {
		if !entry.IsAssigned() {
			result.Skipped++
			continue
		}
		if err := e.Delete(entry.Source.Path); err != nil {
			logging.Warn("deletion failed", "archive", entry.Source.Path, "error", err)
			result.fail(err)
			continue
		}
		logging.Info("deleted archive", "archive", entry.Source.Path)
		result.Succeeded++
		result.Done = append(result.Done, entry)
	}

	return result
}

// newBar sizes a progress bar by the entry count of every assigned archive.
func (e *Executor) newBar(ctx context.Context, entries []mapping.Entry) *progressbar.ProgressBar {
	if e.progress == nil {
		return nil
	}

	total := 0
	for _, entry := range entries {
		if !entry.IsAssigned() {
			continue
		}
		if n, err := archive.Count(ctx, e.fs, entry.Source.Path); err == nil {
			total += n
		}
	}
	if total == 0 {
		return nil
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer: "█", SaucerHead: "█", SaucerPadding: "░",
			BarStart: "[", BarEnd: "]",
		}),
	)
}
