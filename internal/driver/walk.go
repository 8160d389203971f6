package driver

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lucasnoah/fixloop/internal/fixtures"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// WalkOptions selects files under a root.
type WalkOptions struct {
	Extensions []string // with leading dot, matched case-insensitively
	Exclude    []string // regexes matched against the slash-separated path relative to root

	// OnError is told about entries below root that could not be read.
	// They are skipped; only an unreadable root fails the walk.
	OnError func(path string, err error)
}

// Walk returns the files under root with a selected extension, in lexical
// order. Per-file fixture overrides are never selected. Unreadable entries
// below root are skipped.
func Walk(root string, opts WalkOptions) ([]string, error) {
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}
	excludes := make([]*regexp.Regexp, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("exclude %q: %w", pattern, err)
		}
		excludes = append(excludes, re)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
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
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && (skipDirs[d.Name()] || excluded(excludes, rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.HasSuffix(d.Name(), fixtures.OverrideSuffix) {
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if excluded(excludes, rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func excluded(res []*regexp.Regexp, rel string) bool {
	for _, re := range res {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}
