// Package archive models an in-memory directory tree: a flat list of file
// and folder entries identified by forward-slash-separated paths, the shape
// oiCA serializes. FromDir walks a real directory and records each file's
// modification time (read through djherbis/times.v1) for oiCA's optional
// per-file timestamps; birth/creation time is not used.
package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	times "gopkg.in/djherbis/times.v1"

	"github.com/oxsomi/oxc3core/oxerr"
)

// EntryType distinguishes a folder entry (no Data, no leaf Timestamp) from a
// file entry.
type EntryType uint8

const (
	File EntryType = iota
	Folder
)

// Entry is one file or folder in an Archive.
type Entry struct {
	Path      string
	Type      EntryType
	Data      []byte
	Timestamp time.Time // zero value means "no timestamp recorded"
}

// Archive is an unordered bag of entries; oiCA imposes its own on-disk
// ordering independently at encode time.
type Archive struct {
	Entries []Entry
}

// AddFile appends a file entry.
func (a *Archive) AddFile(path string, data []byte, ts time.Time) {
	a.Entries = append(a.Entries, Entry{Path: path, Type: File, Data: data, Timestamp: ts})
}

// AddFolder appends a folder entry.
func (a *Archive) AddFolder(path string) {
	a.Entries = append(a.Entries, Entry{Path: path, Type: Folder})
}

// FromDir walks root and builds an Archive of every file and folder beneath
// it (root itself excluded), using forward-slash relative paths and the
// best available modification time for each file.
func FromDir(root string) (*Archive, error) {
	a := &Archive{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			a.AddFolder(rel)
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		ts := modTime(path)
		a.AddFile(rel, data, ts)
		return nil
	})
	if err != nil {
		return nil, oxerr.Wrap(oxerr.PlatformError, "archive.FromDir", err)
	}

	return a, nil
}

func modTime(path string) time.Time {
	t, err := times.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return t.ModTime()
}

// SortedDirsAndFiles splits entries into folder paths and file paths, each
// sorted by (slash-count ascending, case-insensitive path) -- the order
// that guarantees every folder's children are contiguous and every parent
// directory index is already known by the time its children are visited.
func (a *Archive) SortedDirsAndFiles() (dirs, files []string) {
	for _, e := range a.Entries {
		if e.Type == Folder {
			dirs = append(dirs, e.Path)
		} else {
			files = append(files, e.Path)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return lessPath(dirs[i], dirs[j]) })
	sort.Slice(files, func(i, j int) bool { return lessPath(files[i], files[j]) })
	return dirs, files
}

func lessPath(a, b string) bool {
	fa, fb := strings.Count(a, "/"), strings.Count(b, "/")
	if fa != fb {
		return fa < fb
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

// FindByPath returns the entry with the given path, or false if absent.
func (a *Archive) FindByPath(path string) (Entry, bool) {
	for _, e := range a.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}
