package snapshot

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// maxDiffBytes bounds how much of a modified file is kept for reporting.
// Comparison always uses the full content.
const maxDiffBytes = 256 << 10

// EntryKind is the type of a tree entry.
type EntryKind int

// Entry kinds.
const (
	KindNone EntryKind = iota
	KindFile
	KindDir
	KindSymlink
	// KindOther covers FIFOs, sockets and devices. They are compared by type
	// only and never opened.
	KindOther
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindOther:
		return "other"
	default:
		return "none"
	}
}

// ChangeKind classifies one difference between two trees.
type ChangeKind int

// Change kinds.
const (
	Added ChangeKind = iota
	Removed
	Modified
	TypeChanged
)

func (c ChangeKind) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case TypeChanged:
		return "type changed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(c))
	}
}

// DiffEntry is one path that differs between baseline (Old) and scratch (New).
// Old and New hold file content or symlink targets, and are nil for
// directories, for missing sides, and for files larger than maxDiffBytes.
type DiffEntry struct {
	Path    string
	Change  ChangeKind
	OldKind EntryKind
	NewKind EntryKind
	OldSize int64
	NewSize int64
	Old     []byte
	New     []byte
}

// Shown reports whether both sides' content is available for a textual diff.
func (d DiffEntry) Shown() bool {
	for _, k := range []EntryKind{d.OldKind, d.NewKind} {
		if k == KindDir || k == KindOther {
			return false
		}
	}
	oldOK := d.OldKind == KindNone || d.Old != nil || d.OldSize == 0
	newOK := d.NewKind == KindNone || d.New != nil || d.NewSize == 0
	return oldOK && newOK
}

// TreeDiff is the full set of differences for one test case, sorted by path.
type TreeDiff struct {
	// NoBaseline is set when no baseline existed; every entry is then Added.
	NoBaseline bool
	Entries    []DiffEntry
}

// Empty reports whether the trees were identical.
func (d *TreeDiff) Empty() bool {
	return d == nil || (!d.NoBaseline && len(d.Entries) == 0)
}

// entry is one node of a walked tree.
type entry struct {
	kind   EntryKind
	size   int64
	target string
	path   string
	mode   fs.FileMode
}

// walkTree returns the entries under root keyed by slash-separated relative path.
// A missing root yields a nil map and no error.
func walkTree(root string) (map[string]entry, error) {
	if _, err := os.Lstat(root); os.IsNotExist(err) {
		return nil, nil
	}

	entries := make(map[string]entry)
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

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			entries[rel] = entry{kind: KindSymlink, target: target, size: int64(len(target)), path: path}
		case d.IsDir():
			entries[rel] = entry{kind: KindDir, path: path}
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			entries[rel] = entry{kind: KindFile, size: info.Size(), path: path}
		default:
			entries[rel] = entry{kind: KindOther, path: path, mode: d.Type()}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// outputError marks a failure caused by the captured tree rather than the
// baseline.
type outputError struct {
	err error
}

func (e *outputError) Error() string { return e.err.Error() }
func (e *outputError) Unwrap() error { return e.err }

// diffTrees compares the baseline tree at oldRoot with the tree at newRoot.
// Failures on the newRoot side, including entries that are neither regular
// files, directories nor symlinks, are returned as *outputError.
func diffTrees(oldRoot, newRoot string) (*TreeDiff, error) {
	oldTree, err := walkTree(oldRoot)
	if err != nil {
		return nil, fmt.Errorf("reading baseline %s: %w", oldRoot, err)
	}
	newTree, err := walkTree(newRoot)
	if err != nil {
		return nil, &outputError{fmt.Errorf("reading output %s: %w", newRoot, err)}
	}
	for _, rel := range sortedPaths(newTree) {
		if e := newTree[rel]; e.kind == KindOther {
			return nil, &outputError{fmt.Errorf("%s: unsupported file type %s", rel, e.mode.Type())}
		}
	}

	diff := &TreeDiff{NoBaseline: oldTree == nil}

	paths := make([]string, 0, len(oldTree)+len(newTree))
	for p := range oldTree {
		paths = append(paths, p)
	}
	for p := range newTree {
		if _, ok := oldTree[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		o, inOld := oldTree[p]
		n, inNew := newTree[p]

		d := DiffEntry{Path: p, OldKind: o.kind, NewKind: n.kind, OldSize: o.size, NewSize: n.size}
		switch {
		case !inOld:
			d.Change = Added
		case !inNew:
			d.Change = Removed
		case o.kind != n.kind:
			d.Change = TypeChanged
		case o.kind == KindDir, o.kind == KindOther:
			continue
		case o.kind == KindSymlink:
			if o.target == n.target {
				continue
			}
			d.Change = Modified
		default:
			same, err := sameContent(o, n)
			if err != nil {
				return nil, err
			}
			if same {
				continue
			}
			d.Change = Modified
		}

		if d.Old, err = loadForDiff(o); err != nil {
			return nil, err
		}
		if d.New, err = loadForDiff(n); err != nil {
			return nil, &outputError{err}
		}
		diff.Entries = append(diff.Entries, d)
	}

	return diff, nil
}

func sameContent(a, b entry) (bool, error) {
	if a.size != b.size {
		return false, nil
	}
	ad, err := os.ReadFile(a.path)
	if err != nil {
		return false, err
	}
	bd, err := os.ReadFile(b.path)
	if err != nil {
		return false, &outputError{err}
	}
	return bytes.Equal(ad, bd), nil
}

func loadForDiff(e entry) ([]byte, error) {
	switch e.kind {
	case KindSymlink:
		return []byte(e.target), nil
	case KindFile:
		if e.size > maxDiffBytes {
			return nil, nil
		}
		return os.ReadFile(e.path)
	default:
		return nil, nil
	}
}
