// Package snapshot implements the on-disk baseline store. Each test case owns
// one directory under the output directory holding its last accepted stdout,
// stderr and any other files the command wrote into its scratch directory.
//
// The store assumes a single snaptest process per output directory; there is
// no locking.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	snaperrors "snaptest/internal/errors"
	"snaptest/internal/logger"
)

// Prefixes of the hidden working directories Accept creates inside the
// output directory. Leftovers only exist after an interrupted Accept.
const (
	stagePrefix = ".snaptest-stage."
	oldPrefix   = ".snaptest-old."
)

// OutcomeKind classifies a test case after comparison.
type OutcomeKind int

// Outcome kinds.
const (
	Unchanged OutcomeKind = iota
	Changed
	CaptureFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case CaptureFailed:
		return "capture failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of comparing one execution against its baseline.
type Outcome struct {
	Kind OutcomeKind
	// Diff is set for Changed.
	Diff *TreeDiff
	// Err is set for CaptureFailed.
	Err error
}

// Store is the baseline store rooted at an output directory.
type Store struct {
	dir string
	log *log.Logger
}

// New creates a Store rooted at dir, which must already exist.
func New(dir string) *Store {
	return &Store{dir: dir, log: logger.NewStyledLogger("store")}
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// PathFor returns the baseline directory of name. It does not touch the filesystem.
func (s *Store) PathFor(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a baseline directory exists for name.
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.PathFor(name))
	return err == nil && info.IsDir()
}

// Compare compares the full baseline tree of name with the tree at scratchDir.
// A missing baseline is Changed with every scratch entry Added. A scratch tree
// that cannot be read, or that holds entries other than regular files,
// directories and symlinks, is CaptureFailed. Only baseline failures are
// returned as errors.
func (s *Store) Compare(name, scratchDir string) (Outcome, error) {
	diff, err := diffTrees(s.PathFor(name), scratchDir)
	var outErr *outputError
	if errors.As(err, &outErr) {
		return Outcome{Kind: CaptureFailed, Err: snaperrors.Wrap(snaperrors.ECapture, "cannot capture output of "+name, outErr.err)}, nil
	}
	if err != nil {
		return Outcome{}, snaperrors.Wrap(snaperrors.EStore, "cannot compare "+name, err)
	}
	if diff.Empty() {
		return Outcome{Kind: Unchanged}, nil
	}
	return Outcome{Kind: Changed, Diff: diff}, nil
}

// Accept replaces the baseline of name with a copy of scratchDir.
//
// The copy is built in a hidden staging directory next to the baseline, the
// old baseline is renamed aside, the staging directory is renamed into
// place and the old copy is removed. An interruption leaves either the old or
// the new baseline in place plus hidden leftovers that Clean repairs.
func (s *Store) Accept(name, scratchDir string) error {
	target := s.PathFor(name)
	stage := filepath.Join(s.dir, stagePrefix+uuid.NewString())

	if err := copyTree(scratchDir, stage); err != nil {
		_ = SafeRemoveAll(stage, s.dir)
		return snaperrors.Wrap(snaperrors.EStore, "cannot stage new baseline for "+name, err)
	}

	var old string
	if _, err := os.Lstat(target); err == nil {
		old = filepath.Join(s.dir, oldPrefix+uuid.NewString()+"."+name)
		if err := os.Rename(target, old); err != nil {
			_ = SafeRemoveAll(stage, s.dir)
			return snaperrors.Wrap(snaperrors.EStore, "cannot move old baseline of "+name+" aside", err)
		}
	}

	if err := os.Rename(stage, target); err != nil {
		if old != "" {
			_ = os.Rename(old, target)
		}
		_ = SafeRemoveAll(stage, s.dir)
		return snaperrors.Wrap(snaperrors.EStore, "cannot install new baseline for "+name, err)
	}

	if old != "" {
		if err := SafeRemoveAll(old, s.dir); err != nil {
			s.log.Warn("Cannot remove previous baseline", "test", name, "path", old, "error", err)
		}
	}
	s.log.Debug("Accepted", "test", name, "path", target)
	return nil
}

// Clean repairs leftovers of interrupted Accept calls: staging directories
// are removed and a set-aside baseline is restored when its test has no
// baseline, otherwise removed. It returns the paths it handled, sorted.
func (s *Store) Clean() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EStore, "cannot read output directory", err)
	}

	var handled []string
	for _, e := range entries {
		path := filepath.Join(s.dir, e.Name())
		switch {
		case strings.HasPrefix(e.Name(), stagePrefix):
			if err := SafeRemoveAll(path, s.dir); err != nil {
				return handled, snaperrors.Wrap(snaperrors.EStore, "cannot remove "+path, err)
			}
		case strings.HasPrefix(e.Name(), oldPrefix):
			name, ok := parseOldName(e.Name())
			if ok && !s.Exists(name) {
				if err := os.Rename(path, s.PathFor(name)); err != nil {
					return handled, snaperrors.Wrap(snaperrors.EStore, "cannot restore "+path, err)
				}
				s.log.Info("Restored baseline", "test", name)
			} else if err := SafeRemoveAll(path, s.dir); err != nil {
				return handled, snaperrors.Wrap(snaperrors.EStore, "cannot remove "+path, err)
			}
		default:
			continue
		}
		handled = append(handled, path)
	}
	sort.Strings(handled)
	return handled, nil
}

// parseOldName extracts the test name from ".snaptest-old.<uuid>.<name>".
func parseOldName(base string) (string, bool) {
	rest := strings.TrimPrefix(base, oldPrefix)
	id, name, ok := strings.Cut(rest, ".")
	if !ok || name == "" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return name, true
}

// copyTree copies src recursively to dst, which must not exist. Regular
// files keep their permission bits; symlinks are recreated, not followed.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(target, out)
		case d.IsDir():
			return os.Mkdir(out, info.Mode().Perm()|0700)
		case d.Type().IsRegular():
			return copyFile(path, out, info.Mode().Perm())
		default:
			return fmt.Errorf("unsupported file type %s at %s", d.Type(), path)
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
