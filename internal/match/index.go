package match

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ryanm101/zipmap/internal/archive"
	"github.com/ryanm101/zipmap/internal/db"
	"github.com/ryanm101/zipmap/internal/inventory"
	"github.com/ryanm101/zipmap/internal/logging"
)

// DefaultNameCacheSize bounds how many archive namelists are kept between
// refreshes.
const DefaultNameCacheSize = 256

// Index scores archives against directories with the score index database.
// Archive namelists are cached by path, size and modification time; target
// trees are re-read on every Refresh.
type Index struct {
	db    *db.DB
	fs    billy.Filesystem
	names *lru.Cache[string, []string]
}

// NewIndex creates an index over fs backed by database.
func NewIndex(database *db.DB, fs billy.Filesystem, cacheSize int) (*Index, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultNameCacheSize
	}
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create name cache: %w", err)
	}
	return &Index{db: database, fs: fs, names: cache}, nil
}

// Refresh replaces the index contents with the namelists and trees of inv.
// An archive that cannot be read is indexed with no entries.
func (ix *Index) Refresh(ctx context.Context, inv *inventory.Inventory) error {
	tx, err := ix.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"archive_entries", "target_paths", "sources", "targets"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil { // #nosec G202
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, source := range inv.Sources {
		if err := ix.indexSource(ctx, tx, source); err != nil {
			return err
		}
	}
	for _, target := range inv.Targets {
		if err := ix.indexTarget(ctx, tx, target); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (ix *Index) indexSource(ctx context.Context, tx *sql.Tx, source inventory.SourceItem) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO sources (path) VALUES (?)`, source.Path)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	sourceID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	names, err := ix.namelist(ctx, source.Path)
	if err != nil {
		logging.Warn("cannot read archive, scoring it as empty", "archive", source.Path, "error", err)
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO archive_entries (source_id, name) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, sourceID, name); err != nil {
			return fmt.Errorf("failed to insert archive entry: %w", err)
		}
	}
	return nil
}

func (ix *Index) indexTarget(ctx context.Context, tx *sql.Tx, target inventory.TargetItem) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO targets (path) VALUES (?)`, target.Path)
	if err != nil {
		return fmt.Errorf("failed to insert target: %w", err)
	}
	targetID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	paths, err := ix.relativeTree(target.Path)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO target_paths (target_id, rel_path) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, targetID, p); err != nil {
			return fmt.Errorf("failed to insert target path: %w", err)
		}
	}
	return nil
}

// namelist returns the archive's names, from cache when the file is unchanged.
func (ix *Index) namelist(ctx context.Context, path string) ([]string, error) {
	info, err := ix.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if names, ok := ix.names.Get(key); ok {
		return names, nil
	}

	names, err := archive.Names(ctx, ix.fs, path)
	if err != nil {
		return nil, err
	}
	ix.names.Add(key, names)
	return names, nil
}

// relativeTree lists every file and directory below root, relative to root
// and with forward slashes. root itself may be a symlink to a directory;
// symlinks further down are listed but not followed. Unreadable paths are
// skipped.
func (ix *Index) relativeTree(root string) ([]string, error) {
	// ReadDir resolves a symlinked root, util.Walk would only Lstat it.
	children, err := ix.fs.ReadDir(root)
	if err != nil {
		logging.Warn("skipping unreadable target", "path", root, "error", err)
		return nil, nil
	}

	var paths []string
	walkFn := func(path string, _ os.FileInfo, err error) error {
		if err != nil {
			logging.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	}

	for _, child := range children {
		if err := util.Walk(ix.fs, ix.fs.Join(root, child.Name()), walkFn); err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return paths, nil
}

// Scores returns the score of source against each target, in target order.
// Targets missing from the index score zero.
func (ix *Index) Scores(ctx context.Context, source inventory.SourceItem, targets []inventory.TargetItem) ([]int, error) {
	rows, err := ix.db.Conn().QueryContext(ctx, `
		SELECT t.path, COUNT(*)
		FROM archive_entries a
		JOIN sources s ON s.id = a.source_id
		JOIN target_paths tp ON tp.rel_path = a.name
		JOIN targets t ON t.id = tp.target_id
		WHERE s.path = ?
		GROUP BY t.id
	`, source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byPath := make(map[string]int)
	for rows.Next() {
		var path string
		var score int
		if err := rows.Scan(&path, &score); err != nil {
			return nil, err
		}
		byPath[path] = score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scores := make([]int, len(targets))
	for i, t := range targets {
		scores[i] = byPath[t.Path]
	}
	return scores, nil
}

// Score returns the score of a single source and target pair.
func (ix *Index) Score(ctx context.Context, source inventory.SourceItem, target inventory.TargetItem) (int, error) {
	scores, err := ix.Scores(ctx, source, []inventory.TargetItem{target})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}
