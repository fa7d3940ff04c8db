// Package stage operates on the staging root: the temporary directory
// tree that mirrors the target filesystem layout before the installed
// files are collected into a distributable artifact.
package stage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
)

// Policy controls how file patterns are resolved.
type Policy struct {
	// AllowEmptyPatterns downgrades a pattern with zero matches from a
	// packaging error to a debug log line.
	AllowEmptyPatterns bool
}

// Cleanup removes every path under stagingRoot matching one of the
// exclusion patterns. A pattern with no matches is not an error, so the
// operation is idempotent.
func Cleanup(stagingRoot string, excludePatterns []string) error {
	log := logger.Logger()

	for _, pattern := range excludePatterns {
		matches, err := filepath.Glob(filepath.Join(stagingRoot, pattern))
		if err != nil {
			return fmt.Errorf("bad exclude pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			log.Debugf("removing excluded path %s", match)
			if err := os.RemoveAll(match); err != nil {
				return fmt.Errorf("removing %s: %w", match, err)
			}
		}
	}
	return nil
}

// EnumerateFiles resolves the inclusion patterns against the staging
// root and returns the sorted, de-duplicated list of regular files that
// make up the package, as staging-root-relative paths. A matched
// directory contributes every file beneath it. A mandatory pattern with
// zero matches fails the packaging step.
func EnumerateFiles(stagingRoot string, filePatterns []string, policy Policy) ([]string, error) {
	log := logger.Logger()
	seen := map[string]bool{}

	for _, pattern := range filePatterns {
		matches, err := filepath.Glob(filepath.Join(stagingRoot, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			if policy.AllowEmptyPatterns {
				log.Debugf("pattern %q matched nothing", pattern)
				continue
			}
			return nil, fmt.Errorf("file pattern %q matched nothing in staging root", pattern)
		}

		for _, match := range matches {
			if err := collect(stagingRoot, match, seen); err != nil {
				return nil, err
			}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// collect adds match (or, for a directory, every file beneath it) to
// the set as staging-root-relative paths.
func collect(stagingRoot string, match string, seen map[string]bool) error {
	info, err := os.Lstat(match)
	if err != nil {
		return fmt.Errorf("stat %s: %w", match, err)
	}

	if !info.IsDir() {
		rel, err := filepath.Rel(stagingRoot, match)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", match, err)
		}
		seen[rel] = true
		return nil
	}

	return filepath.WalkDir(match, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(stagingRoot, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		seen[rel] = true
		return nil
	})
}
