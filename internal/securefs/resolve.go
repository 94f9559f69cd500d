package securefs

import (
	"path/filepath"
	"strings"
)

// Resolve maps a virtual path onto root and returns the resulting absolute
// path. The virtual path is always treated as relative to root, never as a
// second absolute path. The result is the root itself or a descendant of it;
// anything else fails with ErrPathTraversal.
//
// Resolve is purely lexical. Symlinks are handled by the os.Root that
// SecureFS performs the actual syscalls through.
func Resolve(root, virtual string) (string, error) {
	if virtual == "" || virtual[0] != '/' || strings.IndexByte(virtual, 0) >= 0 {
		return "", invalidPath(ErrInvalidPath, virtual)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", invalidPath(ErrInvalidPath, root)
	}

	resolved := filepath.Join(absRoot, filepath.FromSlash("."+virtual))
	if !isPathPrefix(absRoot, resolved) {
		return "", invalidPath(ErrPathTraversal, virtual)
	}

	return resolved, nil
}

// isPathPrefix checks if target is within or equal to base
func isPathPrefix(absBase, absTarget string) bool {
	if absTarget == absBase {
		return true
	}
	// A filesystem root already ends in a separator
	if strings.HasSuffix(absBase, string(filepath.Separator)) {
		return strings.HasPrefix(absTarget, absBase)
	}
	return strings.HasPrefix(absTarget, absBase+string(filepath.Separator))
}

// relativeTo converts a resolved path into the form os.Root expects.
func relativeTo(absRoot, resolved string) string {
	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == "" {
		return "."
	}
	return rel
}
