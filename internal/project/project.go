// Package project detects what kind of project a directory holds so the
// model can be told about its environment.
package project

import (
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// Info describes the project around a working directory.
type Info struct {
	// Type is a coarse project kind such as "go" or "node"; "unknown"
	// when no marker file matches.
	Type string
	// Root is the repository root when the directory is under git,
	// otherwise the directory itself.
	Root string
	// Branch is the current git branch, empty outside a repository or
	// on a detached HEAD.
	Branch string
}

// markers maps marker files to project types, checked in order.
var markers = []struct {
	file string
	kind string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"package.json", "node"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"Gemfile", "ruby"},
	{"mix.exs", "elixir"},
	{"CMakeLists.txt", "c/c++"},
	{"Makefile", "make"},
}

// Detect inspects the directory and its enclosing git repository.
// Detection failures degrade to an unknown project, never an error.
func Detect(directory string) Info {
	abs, err := filepath.Abs(directory)
	if err != nil {
		abs = directory
	}

	info := Info{Type: "unknown", Root: abs}

	if repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		if wt, err := repo.Worktree(); err == nil {
			info.Root = wt.Filesystem.Root()
		}
		if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	}

	// Markers are checked at the working directory first, then at the
	// repository root for runs started in a subdirectory.
	for _, dir := range []string{abs, info.Root} {
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
				info.Type = m.kind
				return info
			}
		}
	}
	return info
}
