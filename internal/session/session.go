// Package session runs the interactive mapping loop.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/ryanm101/zipmap/internal/executor"
	"github.com/ryanm101/zipmap/internal/inventory"
	"github.com/ryanm101/zipmap/internal/logging"
	"github.com/ryanm101/zipmap/internal/mapping"
	"github.com/ryanm101/zipmap/internal/match"
)

const (
	promptSource  = "Source folder: "
	promptTarget  = "Target folder: "
	promptCommand = "Enter command: "
)

var (
	// ErrBatchFailed is returned when a terminal batch had failures.
	ErrBatchFailed = errors.New("batch finished with failures")
	// ErrNoRoot is returned when a root folder was neither given nor entered.
	ErrNoRoot = errors.New("no folder given")
)

// Session owns the state of one interactive run: the scanned inventory and
// the current mapping.
type Session struct {
	scanner *inventory.Scanner
	scorer  match.Scorer
	exec    *executor.Executor

	in      *bufio.Reader
	out     io.Writer
	reads   chan struct{}
	lines   chan lineResult
	pending bool

	resolve func(string) (string, error)

	red   *color.Color
	green *color.Color
}

// Option configures a Session.
type Option func(*Session)

// WithPathResolver rewrites root folders before the first scan, for example
// into absolute paths.
func WithPathResolver(resolve func(string) (string, error)) Option {
	return func(s *Session) {
		s.resolve = resolve
	}
}

// New creates a session reading commands from in and writing to out.
func New(scanner *inventory.Scanner, scorer match.Scorer, exec *executor.Executor, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		scanner: scanner,
		scorer:  scorer,
		exec:    exec,
		in:      bufio.NewReader(in),
		out:     out,
		red:     color.New(color.FgRed),
		green:   color.New(color.FgGreen),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lineResult is one line read from the input, or the error that ended it.
type lineResult struct {
	line string
	err  error
}

// state is what a single pass of the loop works on.
type state struct {
	inv     *inventory.Inventory
	mapping *mapping.Mapping
}

// Run prompts for missing roots, then loops until a terminal command or the
// end of input. Reloads rescan from scratch without nesting.
func (s *Session) Run(ctx context.Context, sourceRoot, targetRoot string) error {
	defer s.stopReading()

	sourceRoot, err := s.promptIfEmpty(ctx, promptSource, sourceRoot)
	if err != nil {
		return err
	}
	targetRoot, err = s.promptIfEmpty(ctx, promptTarget, targetRoot)
	if err != nil {
		return err
	}
	if err := s.resolveRoots(&sourceRoot, &targetRoot); err != nil {
		return err
	}

	for {
		restart, err := s.runOnce(ctx, sourceRoot, targetRoot)
		if err != nil || !restart {
			return err
		}
		logging.Debug("reloading session", "source_root", sourceRoot, "target_root", targetRoot)
	}
}

// runOnce scans, seeds the mapping and handles commands until the session
// either ends or asks for a fresh scan.
func (s *Session) runOnce(ctx context.Context, sourceRoot, targetRoot string) (restart bool, err error) {
	inv, err := s.scanner.Scan(sourceRoot, targetRoot)
	if err != nil {
		return false, err
	}

	m, err := match.AutoMap(ctx, s.scorer, inv, match.UniqueMatch)
	if err != nil {
		return false, err
	}
	st := &state{inv: inv, mapping: m}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		Render(s.out, st.inv, st.mapping)

		line, err := s.readLine(ctx, promptCommand)
		if errors.Is(err, io.EOF) {
			logging.Debug("end of input, quitting")
			return false, nil
		}
		if err != nil {
			return false, err
		}

		cmd := Parse(line)
		logging.Debug("command", "kind", cmd.Kind.String(), "terminal", cmd.Terminal())
		if cmd.Terminal() {
			return false, s.finish(ctx, st, cmd)
		}

		switch cmd.Kind {
		case None:
			continue

		case Assign:
			if err := s.assign(st, cmd); err != nil {
				s.printError(err)
			}

		case Clear:
			st.mapping.Clear()

		case AutoUnique, AutoBest:
			policy := match.UniqueMatch
			if cmd.Kind == AutoBest {
				policy = match.BestMatch
			}
			m, err := match.AutoMap(ctx, s.scorer, st.inv, policy)
			if err != nil {
				s.printError(err)
				continue
			}
			st.mapping = m

		case DeleteReload:
			s.report(s.exec.DeleteMapped(st.mapping.Assigned()))
			return true, nil

		case Reload:
			return true, nil

		case Help:
			_, _ = fmt.Fprintln(s.out, helpText)
		}
	}
}

// finish runs a terminal command. Only the batches can fail.
func (s *Session) finish(ctx context.Context, st *state, cmd Command) error {
	switch cmd.Kind {
	case Execute:
		result := s.exec.Run(ctx, st.mapping.Entries())
		s.report(result)
		return batchErr(result)

	case ExecuteDelete:
		extracted := s.exec.Run(ctx, st.mapping.Entries())
		s.report(extracted)
		// Archives whose extraction failed are kept.
		deleted := s.exec.DeleteMapped(extracted.Done)
		s.report(deleted)
		return batchErr(extracted, deleted)
	}
	return nil
}

func (s *Session) assign(st *state, cmd Command) error {
	source, err := st.inv.Source(cmd.Source)
	if err != nil {
		return err
	}
	target, ok, err := st.inv.Target(cmd.Target)
	if err != nil {
		return err
	}
	if prev, err := st.mapping.Lookup(source); err == nil {
		logging.Debug("assigning source", "source", source.Path,
			"previous", prev.Target.Path, "target", target.Path)
	}
	if !ok {
		return st.mapping.Unassign(source)
	}
	return st.mapping.Assign(source, target)
}

func (s *Session) promptIfEmpty(ctx context.Context, prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	line, err := s.readLine(ctx, prompt)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if line == "" {
		return "", fmt.Errorf("%w: %s", ErrNoRoot, strings.TrimSuffix(prompt, ": "))
	}
	return line, nil
}

func (s *Session) resolveRoots(roots ...*string) error {
	if s.resolve == nil {
		return nil
	}
	for _, root := range roots {
		resolved, err := s.resolve(*root)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", *root, err)
		}
		*root = resolved
	}
	return nil
}

// readLine prints prompt and returns the next line without its line ending.
// A final unterminated line is returned with a nil error. Cancelling ctx
// returns at once; the pending line is handed to the next call.
func (s *Session) readLine(ctx context.Context, prompt string) (string, error) {
	_, _ = fmt.Fprint(s.out, prompt)

	if s.reads == nil {
		s.reads = make(chan struct{}, 1)
		s.lines = make(chan lineResult, 1)
		go s.readLines()
	}
	if !s.pending {
		s.reads <- struct{}{}
		s.pending = true
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-s.lines:
		s.pending = false
		return r.line, r.err
	}
}

// readLines reads one line from the input per request on s.reads.
func (s *Session) readLines() {
	for range s.reads {
		line, err := s.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			s.lines <- lineResult{err: err}
			continue
		}
		s.lines <- lineResult{line: strings.TrimRight(line, "\r\n")}
	}
}

func (s *Session) stopReading() {
	if s.reads != nil {
		close(s.reads)
	}
}

func (s *Session) printError(err error) {
	_, _ = s.red.Fprintf(s.out, "Error: %v\n", err)
}

func (s *Session) report(r *executor.Result) {
	if r.Succeeded+r.Failed == 0 {
		return
	}

	switch r.Op {
	case executor.OpExtract:
		_, _ = s.green.Fprintf(s.out, "Extracted %d archive(s), %s written\n", r.Succeeded, humanize.Bytes(uint64(r.Bytes)))
	case executor.OpDelete:
		_, _ = s.green.Fprintf(s.out, "Deleted %d archive(s)\n", r.Succeeded)
	}

	if r.Failed > 0 {
		_, _ = s.red.Fprintf(s.out, "%d %s operation(s) failed:\n", r.Failed, r.Op)
		for _, err := range r.Errors {
			_, _ = s.red.Fprintf(s.out, "  %v\n", err)
		}
	}
}

func batchErr(results ...*executor.Result) error {
	failed := 0
	var errs []error
	for _, r := range results {
		failed += r.Failed
		errs = append(errs, r.Err())
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d operation(s) failed: %w", ErrBatchFailed, failed, errors.Join(errs...))
}
