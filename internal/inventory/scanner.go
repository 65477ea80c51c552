// Package inventory lists the source archives and target directories a
// session works with.
package inventory

import (
	"os"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/ryanm101/zipmap/internal/logging"
)

// DefaultArchiveSuffix selects which source entries count as archives.
const DefaultArchiveSuffix = ".zip"

// SourceItem is one archive found in the source root.
type SourceItem struct {
	Index int
	Path  string
}

// ID returns the item's display id.
func (s SourceItem) ID() string {
	return SourceID(s.Index)
}

// TargetItem is one directory found in the target root.
type TargetItem struct {
	Index int
	Path  string
}

// ID returns the item's display id.
func (t TargetItem) ID() string {
	return TargetID(t.Index)
}

// Inventory is the result of scanning both roots.
type Inventory struct {
	SourceRoot string
	TargetRoot string
	Sources    []SourceItem
	Targets    []TargetItem
}

// Source resolves a source display id.
func (inv *Inventory) Source(id rune) (SourceItem, error) {
	index, err := ParseSourceID(id, len(inv.Sources))
	if err != nil {
		return SourceItem{}, err
	}
	return inv.Sources[index], nil
}

// Target resolves a target display id. ok is false for the unassign id.
func (inv *Inventory) Target(id rune) (target TargetItem, ok bool, err error) {
	index, ok, err := ParseTargetID(id, len(inv.Targets))
	if err != nil || !ok {
		return TargetItem{}, false, err
	}
	return inv.Targets[index], true, nil
}

// Scanner lists archives and directories on a filesystem.
type Scanner struct {
	fs     billy.Filesystem
	suffix string
}

// NewScanner creates a scanner. An empty suffix selects DefaultArchiveSuffix.
func NewScanner(fs billy.Filesystem, suffix string) *Scanner {
	if suffix == "" {
		suffix = DefaultArchiveSuffix
	}
	return &Scanner{fs: fs, suffix: suffix}
}

// Scan lists both roots. Either root missing, or not a directory, is a
// NotFoundError.
func (s *Scanner) Scan(sourceRoot, targetRoot string) (*Inventory, error) {
	sources, err := s.SourceItems(sourceRoot)
	if err != nil {
		return nil, err
	}
	targets, err := s.TargetItems(targetRoot)
	if err != nil {
		return nil, err
	}

	logging.Debug("scanned inventory",
		"source_root", sourceRoot, "sources", len(sources),
		"target_root", targetRoot, "targets", len(targets))

	return &Inventory{
		SourceRoot: sourceRoot,
		TargetRoot: targetRoot,
		Sources:    sources,
		Targets:    targets,
	}, nil
}

// SourceItems returns the archives directly under root, sorted by path.
func (s *Scanner) SourceItems(root string) ([]SourceItem, error) {
	entries, err := s.readRoot("scan sources", root)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, info := range entries {
		path := s.fs.Join(root, info.Name())
		if !strings.HasSuffix(path, s.suffix) {
			continue
		}
		if s.isDir(path, info) {
			continue
		}
		paths = append(paths, path)
	}
	slices.Sort(paths)

	items := make([]SourceItem, len(paths))
	for i, p := range paths {
		items[i] = SourceItem{Index: i, Path: p}
	}
	return items, nil
}

// TargetItems returns the directories directly under root, sorted by path.
func (s *Scanner) TargetItems(root string) ([]TargetItem, error) {
	entries, err := s.readRoot("scan targets", root)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, info := range entries {
		path := s.fs.Join(root, info.Name())
		if s.isDir(path, info) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)

	items := make([]TargetItem, len(paths))
	for i, p := range paths {
		items[i] = TargetItem{Index: i, Path: p}
	}
	return items, nil
}

func (s *Scanner) readRoot(op, root string) ([]os.FileInfo, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, notFound(op, root, "no such directory")
	}
	if !info.IsDir() {
		return nil, notFound(op, root, "not a directory")
	}

	entries, err := s.fs.ReadDir(root)
	if err != nil {
		return nil, notFound(op, root, err.Error())
	}
	return entries, nil
}

// isDir follows symlinks the way a plain stat would.
func (s *Scanner) isDir(path string, info os.FileInfo) bool {
	if info.Mode()&os.ModeSymlink == 0 {
		return info.IsDir()
	}
	target, err := s.fs.Stat(path)
	if err != nil {
		return false
	}
	return target.IsDir()
}
