// Package discover finds analyzable source files under a workspace root.
package discover

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/rustnav/internal/lang"
)

// Options controls the walk.
type Options struct {
	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to the root. Matching directories are not descended.
	Exclude []string
	// RespectGitignore filters the walk through the root .gitignore.
	RespectGitignore bool
	// OnSymlink is called for every symbolic link met; links are never
	// followed.
	OnSymlink func(path string)
	// OnError is called for every path that could not be read; the walk
	// skips that path's subtree and continues.
	OnError func(path string, err error)
}

// Files returns the absolute paths of every source file under root, sorted.
// Directories named .git and directories holding a cache marker file are
// skipped along with their subtrees.
func Files(root string, opts Options) ([]string, error) {
	root, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New(root + ": not a directory")
	}

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi = loadGitignore(root)
	}

	var results []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if opts.OnError != nil {
				opts.OnError(path, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			if opts.OnSymlink != nil {
				opts.OnSymlink(path)
			}
			return nil
		}

		if d.IsDir() {
			if path != root {
				if d.Name() == lang.VCSDir || excluded(rel, opts.Exclude) || ignored(gi, rel+"/") {
					return filepath.SkipDir
				}
			}
			if hasCacheMarker(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !lang.IsSource(d.Name()) {
			return nil
		}
		if excluded(rel, opts.Exclude) || ignored(gi, rel) {
			return nil
		}

		results = append(results, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func hasCacheMarker(dir string) bool {
	info, err := os.Lstat(filepath.Join(dir, lang.CacheMarker))
	return err == nil && info.Mode().IsRegular()
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func ignored(gi *ignore.GitIgnore, rel string) bool {
	return gi != nil && gi.MatchesPath(rel)
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
