package migration

import (
	"context"
	"errors"
	"io"
	"testing"
	"testing/fstest"

	"github.com/example/hostocars/internal/version"
)

func versionScript(tag string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(`CREATE TABLE IF NOT EXISTS "DatabaseInfo" ("key" TEXT PRIMARY KEY, "value" TEXT);
CREATE TABLE IF NOT EXISTS applied (version TEXT NOT NULL);
INSERT INTO applied (version) VALUES ('` + tag + `');
INSERT OR REPLACE INTO "DatabaseInfo" ("key", "value") VALUES ('version', '` + tag[:5] + `');
`)}
}

func testScriptsFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/1.1.0/001_a.sql": versionScript("1.1.0/a"),
		"migrations/1.0.0/002_b.sql": versionScript("1.0.0/b"),
		"migrations/1.0.0/001_a.sql": versionScript("1.0.0/a"),
		"migrations/1.0.0/README":    &fstest.MapFile{Data: []byte("not a script")},
		"migrations/2.0.0/001_a.sql": versionScript("2.0.0/a"),
		"migrations/notes.txt":       &fstest.MapFile{Data: []byte("ignored")},
	}
}

func TestFSExtractor_Extract(t *testing.T) {
	x := NewFSExtractor(testScriptsFS(), "migrations")

	groups, err := x.Extract(context.Background(), version.Zero, version.MustParse("1.1.0"))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 version groups, got %d", len(groups))
	}
	if groups[0].Version != version.MustParse("1.0.0") || groups[1].Version != version.MustParse("1.1.0") {
		t.Fatalf("unexpected group order: %s, %s", groups[0].Version, groups[1].Version)
	}

	names := make([]string, 0, len(groups[0].Scripts))
	for _, s := range groups[0].Scripts {
		names = append(names, s.Name)
	}
	if len(names) != 2 || names[0] != "migrations/1.0.0/001_a.sql" || names[1] != "migrations/1.0.0/002_b.sql" {
		t.Fatalf("unexpected scripts for 1.0.0: %v", names)
	}

	rc, err := groups[1].Scripts[0].Open()
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected script content")
	}
}

func TestFSExtractor_BoundsAreInclusive(t *testing.T) {
	x := NewFSExtractor(testScriptsFS(), "migrations")

	groups, err := x.Extract(context.Background(), version.MustParse("1.1.0"), version.MustParse("2.0.0"))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(groups) != 2 || groups[0].Version != version.MustParse("1.1.0") || groups[1].Version != version.MustParse("2.0.0") {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestFSExtractor_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		root string
		want error
	}{
		{
			name: "missing root",
			fsys: fstest.MapFS{},
			root: "migrations",
			want: ErrIO,
		},
		{
			name: "directory is not a version",
			fsys: fstest.MapFS{"1.0/001.sql": versionScript("1.0.0/a")},
			root: ".",
			want: ErrConfiguration,
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"1.0.0/001.sql":  versionScript("1.0.0/a"),
				"01.0.0/001.sql": versionScript("1.0.0/b"),
			},
			root: "",
			want: ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFSExtractor(tt.fsys, tt.root).Extract(context.Background(), version.Zero, version.MustParse("9.9.9"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFSExtractor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFSExtractor(testScriptsFS(), "migrations").Extract(ctx, version.Zero, version.MustParse("1.1.0"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
