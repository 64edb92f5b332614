package tool

import (
	"path/filepath"
	"strings"
)

// normalizeScope cleans a path for use as a permission scope. Relative
// paths stay relative so scopes are stable across machines.
func normalizeScope(p string) string {
	if p == "" {
		return "."
	}
	return filepath.Clean(p)
}

// resolvePath turns a possibly relative path into an absolute one under
// workDir.
func resolvePath(workDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(workDir, p)
}

// withinDir reports whether path sits inside dir.
func withinDir(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// truncateOutput bounds tool output fed back to the model.
func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n\n(output truncated)"
}
