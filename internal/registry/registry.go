// Package registry loads test-case definitions and resolves name patterns
// against them. A Registry is built once and is read-only afterwards.
package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	snaperrors "snaptest/internal/errors"
	"snaptest/internal/logger"
)

// maxLineSize bounds a single definition line.
const maxLineSize = 1 << 20

// TestCase is one named command whose captured output is tracked.
type TestCase struct {
	Name    string
	Command string
	Source  string
	Line    int
}

// Location returns "source:line".
func (tc TestCase) Location() string {
	return fmt.Sprintf("%s:%d", tc.Source, tc.Line)
}

// DuplicateWarning records a definition that was ignored because an earlier
// definition with the same name exists. The first occurrence always wins.
type DuplicateWarning struct {
	Name    string
	Kept    TestCase
	Ignored TestCase
}

func (w DuplicateWarning) String() string {
	return fmt.Sprintf("duplicate test %q at %s ignored (command %q); keeping %s",
		w.Name, w.Ignored.Location(), w.Ignored.Command, w.Kept.Location())
}

// Registry is the resolved name to command mapping.
type Registry struct {
	cases    map[string]TestCase
	names    []string
	warnings []DuplicateWarning
}

// Load reads the definition sources in order and builds a Registry.
// Files ending in .yaml or .yml are read as a YAML mapping, everything else
// as name=command lines.
func Load(sources []string) (*Registry, error) {
	b := newBuilder()
	for _, src := range sources {
		var err error
		switch strings.ToLower(filepath.Ext(src)) {
		case ".yaml", ".yml":
			err = b.loadYAML(src)
		default:
			err = b.loadLines(src)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}

// New builds a Registry from already parsed test cases, applying the same
// duplicate policy as Load.
func New(cases ...TestCase) (*Registry, error) {
	b := newBuilder()
	for _, tc := range cases {
		if err := ValidateName(tc.Name); err != nil {
			return nil, snaperrors.Wrap(snaperrors.EParse, "invalid test name "+quote(tc.Name), err)
		}
		b.add(tc)
	}
	return b.build(), nil
}

// Lookup returns the test case with the exact name.
func (r *Registry) Lookup(name string) (TestCase, bool) {
	tc, ok := r.cases[name]
	return tc, ok
}

// Names returns all test names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of test cases.
func (r *Registry) Len() int {
	return len(r.names)
}

// Warnings returns the duplicate definitions seen while loading.
func (r *Registry) Warnings() []DuplicateWarning {
	return append([]DuplicateWarning(nil), r.warnings...)
}

// Resolve returns the sorted names that pattern matches anywhere in the name.
// A nil pattern matches everything.
func (r *Registry) Resolve(pattern *regexp.Regexp) []string {
	var out []string
	for _, name := range r.names {
		if pattern == nil || pattern.MatchString(name) {
			out = append(out, name)
		}
	}
	return out
}

// CompilePattern compiles a name filter. The empty expression matches everything.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EUsage, "invalid pattern "+quote(expr), err)
	}
	return re, nil
}

// ValidateName checks that name can be used as a single directory component.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("name %q starts with a dot", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("name %q contains a path separator", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("name contains a NUL byte")
	}
	return nil
}

type builder struct {
	cases    map[string]TestCase
	warnings []DuplicateWarning
}

func newBuilder() *builder {
	return &builder{cases: make(map[string]TestCase)}
}

func (b *builder) add(tc TestCase) {
	if kept, exists := b.cases[tc.Name]; exists {
		w := DuplicateWarning{Name: tc.Name, Kept: kept, Ignored: tc}
		b.warnings = append(b.warnings, w)
		logger.Debug("Duplicate test definition", "test", tc.Name, "ignored", tc.Location())
		return
	}
	b.cases[tc.Name] = tc
}

func (b *builder) build() *Registry {
	names := make([]string, 0, len(b.cases))
	for name := range b.cases {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{cases: b.cases, names: names, warnings: b.warnings}
}

// loadLines parses name=command lines. The split happens on the first '=';
// the command is kept verbatim.
func (b *builder) loadLines(src string) error {
	f, err := os.Open(src)
	if err != nil {
		return snaperrors.Wrap(snaperrors.EConfig, "cannot open definition source "+src, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		name, command, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok {
			return parseError(src, lineNo, "expected name=command", nil)
		}
		if err := ValidateName(name); err != nil {
			return parseError(src, lineNo, "invalid test name", err)
		}
		b.add(TestCase{Name: name, Command: command, Source: src, Line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return snaperrors.Wrap(snaperrors.EConfig, "cannot read definition source "+src, err)
	}
	return nil
}

func parseError(src string, line int, msg string, cause error) error {
	return snaperrors.WrapWithDetails(snaperrors.EParse,
		fmt.Sprintf("%s:%d: %s", src, line, msg), cause,
		map[string]string{"source": src, "line": fmt.Sprint(line)})
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
