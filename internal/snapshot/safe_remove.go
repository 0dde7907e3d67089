package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotUnderPrefix is returned when a target path is not under the allowed prefix.
type ErrNotUnderPrefix struct {
	Target string
	Prefix string
}

func (e *ErrNotUnderPrefix) Error() string {
	return fmt.Sprintf("target %q is not under allowed prefix %q", e.Target, e.Prefix)
}

// SafeRemoveAll removes target only if it is a proper subpath of allowedPrefix
// after cleaning and resolving symlinks. A missing target is not an error.
func SafeRemoveAll(target, allowedPrefix string) error {
	cleanTarget := filepath.Clean(target)
	cleanPrefix := filepath.Clean(allowedPrefix)

	resolvedPrefix, err := filepath.EvalSymlinks(cleanPrefix)
	if err != nil {
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}

	// The target itself may be a symlink; resolve only its parent so the
	// link is removed rather than followed.
	resolvedParent, err := filepath.EvalSymlinks(filepath.Dir(cleanTarget))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}
	resolvedTarget := filepath.Join(resolvedParent, filepath.Base(cleanTarget))

	if !IsSubpath(resolvedTarget, resolvedPrefix) {
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}
	return os.RemoveAll(cleanTarget)
}

// IsSubpath returns true if target is a proper subpath of prefix.
// Both paths should already be cleaned and resolved.
func IsSubpath(target, prefix string) bool {
	prefixWithSep := prefix
	if !strings.HasSuffix(prefixWithSep, string(filepath.Separator)) {
		prefixWithSep = prefix + string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefixWithSep) && len(target) > len(prefix)
}
