// Package ziptest builds zip fixtures on billy filesystems for tests.
package ziptest

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Write creates a zip archive at path holding the given entry names. Names
// ending in "/" become directory entries; every other entry's content is its
// own name.
func Write(t testing.TB, fs billy.Filesystem, path string, names ...string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if strings.HasSuffix(name, "/") {
			continue
		}
		if _, err := w.Write([]byte(name)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	if err := util.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Touch creates empty files, and their parent directories, under fs.
func Touch(t testing.TB, fs billy.Filesystem, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := util.WriteFile(fs, p, nil, 0644); err != nil {
			t.Fatalf("touch %s: %v", p, err)
		}
	}
}
