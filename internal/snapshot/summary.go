package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/tools/txtar"

	snaperrors "snaptest/internal/errors"
)

const (
	fingerprintLen = 12
	previewRunes   = 60
)

// Summary describes a stored baseline without executing anything.
type Summary struct {
	Name   string
	Path   string
	Exists bool
	// ModTime is the newest modification time of any entry in the baseline.
	ModTime time.Time
	// Fingerprint is a short content hash over relative paths and content.
	Fingerprint string
	// Preview is the first non-blank line of stdout (or stderr), ANSI-stripped.
	Preview string
}

// Summarize returns the Summary of name. A missing baseline is reported with
// Exists false and no error. Summarize never writes.
func (s *Store) Summarize(name string) (*Summary, error) {
	root := s.PathFor(name)
	sum := &Summary{Name: name, Path: root}

	tree, err := walkTree(root)
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EStore, "cannot read baseline of "+name, err)
	}
	if tree == nil {
		return sum, nil
	}
	sum.Exists = true

	if info, err := os.Stat(root); err == nil {
		sum.ModTime = info.ModTime()
	}

	h := sha256.New()
	for _, rel := range sortedPaths(tree) {
		e := tree[rel]
		if info, err := os.Lstat(e.path); err == nil && info.ModTime().After(sum.ModTime) {
			sum.ModTime = info.ModTime()
		}

		writeField(h, []byte(rel))
		writeField(h, []byte(e.kind.String()))
		switch e.kind {
		case KindFile:
			data, err := os.ReadFile(e.path)
			if err != nil {
				return nil, snaperrors.Wrap(snaperrors.EStore, "cannot read baseline of "+name, err)
			}
			writeField(h, data)
		case KindSymlink:
			writeField(h, []byte(e.target))
		}
	}
	sum.Fingerprint = hex.EncodeToString(h.Sum(nil))[:fingerprintLen]

	sum.Preview = preview(filepath.Join(root, "stdout"), "")
	if sum.Preview == "" {
		sum.Preview = preview(filepath.Join(root, "stderr"), "stderr: ")
	}
	return sum, nil
}

// Archive renders the baseline of name as a txtar archive with one file per
// regular file in the baseline, sorted by path. Directories, symlinks and
// special files are listed in the comment.
func (s *Store) Archive(name string) (*txtar.Archive, error) {
	root := s.PathFor(name)
	tree, err := walkTree(root)
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EStore, "cannot read baseline of "+name, err)
	}
	if tree == nil {
		return nil, snaperrors.Newf(snaperrors.ENotFound, "no baseline recorded for %s", name)
	}

	var comment strings.Builder
	comment.WriteString("baseline " + name + "\n")
	ar := &txtar.Archive{}
	for _, rel := range sortedPaths(tree) {
		e := tree[rel]
		switch e.kind {
		case KindFile:
			data, err := os.ReadFile(e.path)
			if err != nil {
				return nil, snaperrors.Wrap(snaperrors.EStore, "cannot read baseline of "+name, err)
			}
			ar.Files = append(ar.Files, txtar.File{Name: rel, Data: data})
		case KindDir:
			comment.WriteString("dir " + rel + "\n")
		case KindSymlink:
			comment.WriteString("symlink " + rel + " -> " + e.target + "\n")
		case KindOther:
			comment.WriteString("other " + rel + " (" + e.mode.Type().String() + ")\n")
		}
	}
	ar.Comment = []byte(comment.String())
	return ar, nil
}

func sortedPaths(tree map[string]entry) []string {
	paths := make([]string, 0, len(tree))
	for p := range tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// writeField writes a length-prefixed field so that field boundaries are unambiguous.
func writeField(h hash.Hash, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}

func preview(path, prefix string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), len(data)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(ansi.Strip(scanner.Text()))
		if line == "" {
			continue
		}
		return prefix + truncate(line, previewRunes)
	}
	return ""
}

func truncate(s string, n int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "?")
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
