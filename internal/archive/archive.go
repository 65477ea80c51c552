// Package archive reads zip archives stored on a billy filesystem.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/mholt/archives"

	"github.com/ryanm101/zipmap/internal/logging"
)

// ErrUnsafePath is returned for entries that would be written outside the
// destination directory.
var ErrUnsafePath = errors.New("entry escapes destination")

const copyBufferSize = 64 * 1024

// Names returns the archive's internal namelist exactly as stored, directory
// entries included, in archive order.
func Names(ctx context.Context, fs billy.Filesystem, archivePath string) ([]string, error) {
	var names []string
	err := walk(ctx, fs, archivePath, func(_ context.Context, f archives.FileInfo) error {
		names = append(names, f.NameInArchive)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Count returns the number of entries in the archive.
func Count(ctx context.Context, fs billy.Filesystem, archivePath string) (int, error) {
	names, err := Names(ctx, fs, archivePath)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Extract writes every entry of the archive under dir, creating directories
// as needed and overwriting existing files. onEntry, if not nil, is called
// once per entry after it has been handled. It returns the bytes written.
func Extract(ctx context.Context, fs billy.Filesystem, archivePath, dir string, onEntry func(name string)) (int64, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil { // #nosec G301
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	var written int64
	err := walk(ctx, fs, archivePath, func(_ context.Context, f archives.FileInfo) error {
		n, err := extractEntry(fs, dir, f)
		if err != nil {
			return fmt.Errorf("%s: %w", f.NameInArchive, err)
		}
		written += n
		if onEntry != nil {
			onEntry(f.NameInArchive)
		}
		return nil
	})
	return written, err
}

func walk(ctx context.Context, fs billy.Filesystem, archivePath string, handler archives.FileHandler) error {
	file, err := fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := (archives.Zip{}).Extract(ctx, file, handler); err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	return nil
}

func extractEntry(fs billy.Filesystem, dir string, f archives.FileInfo) (int64, error) {
	target, err := destination(fs, dir, f.NameInArchive)
	if err != nil {
		return 0, err
	}

	if f.IsDir() {
		if err := fs.MkdirAll(target, 0755); err != nil { // #nosec G301
			return 0, fmt.Errorf("failed to create directory: %w", err)
		}
		return 0, nil
	}

	if f.Mode()&os.ModeSymlink != 0 {
		logging.Debug("skipping symlink entry", "entry", f.NameInArchive)
		return 0, nil
	}

	if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil { // #nosec G301
		return 0, fmt.Errorf("failed to create parent directories: %w", err)
	}

	reader, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open entry: %w", err)
	}
	defer func() { _ = reader.Close() }()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	writer, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = writer.Close() }()

	n, err := io.CopyBuffer(writer, reader, make([]byte, copyBufferSize))
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

// destination joins an entry name onto dir, rejecting names that leave it.
func destination(fs billy.Filesystem, dir, name string) (string, error) {
	rel := strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/")
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
		}
	}
	rel = path.Clean(rel)
	if rel == "." {
		return dir, nil
	}
	return fs.Join(dir, filepath.FromSlash(rel)), nil
}
