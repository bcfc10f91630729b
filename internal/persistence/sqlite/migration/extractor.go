package migration

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/example/hostocars/internal/version"
)

// FSExtractor reads scripts from a file system laid out as one directory per
// version, e.g.
//
//	1.0.0/001_database_info.sql
//	1.0.0/002_cars.sql
//	1.1.0/001_interventions.sql
//
// Only files with the .sql suffix are scripts; within a version they are
// ordered by file name.
type FSExtractor struct {
	fsys fs.FS
	root string
}

// NewFSExtractor returns an extractor over fsys rooted at root ("" or "." for the top).
func NewFSExtractor(fsys fs.FS, root string) *FSExtractor {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	return &FSExtractor{fsys: fsys, root: path.Clean(root)}
}

// Extract implements Extractor.
func (x *FSExtractor) Extract(ctx context.Context, from, to version.Version) ([]VersionScripts, error) {
	entries, err := fs.ReadDir(x.fsys, x.root)
	if err != nil {
		return nil, newError(KindIO, fmt.Sprintf("read migrations dir %s", x.root), err)
	}

	var groups []VersionScripts
	seen := make(map[version.Version]string)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		v, err := version.Parse(entry.Name())
		if err != nil {
			return nil, newError(KindConfiguration, fmt.Sprintf("migrations dir %s", entry.Name()), err)
		}
		if prev, ok := seen[v]; ok {
			return nil, newError(KindConfiguration,
				fmt.Sprintf("directories %s and %s both declare version %s", prev, entry.Name(), v), nil)
		}
		seen[v] = entry.Name()
		if version.Compare(v, from) < 0 || version.Compare(v, to) > 0 {
			continue
		}

		scripts, err := x.scripts(v, path.Join(x.root, entry.Name()))
		if err != nil {
			return nil, err
		}
		groups = append(groups, VersionScripts{Version: v, Scripts: scripts})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Version.Less(groups[j].Version)
	})
	return groups, nil
}

func (x *FSExtractor) scripts(v version.Version, dir string) ([]Script, error) {
	entries, err := fs.ReadDir(x.fsys, dir)
	if err != nil {
		return nil, newError(KindIO, fmt.Sprintf("read version dir %s", dir), err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	scripts := make([]Script, 0, len(names))
	for _, name := range names {
		p := path.Join(dir, name)
		scripts = append(scripts, NewScript(v, p, func() (io.ReadCloser, error) {
			return x.fsys.Open(p)
		}))
	}
	return scripts, nil
}
