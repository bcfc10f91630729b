package migrations_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/example/hostocars/internal/persistence/sqlite/migration"
	"github.com/example/hostocars/internal/persistence/sqlite/migrations"
	"github.com/example/hostocars/internal/version"
)

func TestEmbeddedScripts(t *testing.T) {
	latest := version.MustParse(migrations.Latest)
	groups, err := migration.NewFSExtractor(migrations.FS, ".").Extract(context.Background(), version.Zero, latest)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(groups) == 0 || groups[len(groups)-1].Version != latest {
		t.Fatalf("expected the last embedded version to be %s", latest)
	}

	for _, g := range groups {
		if len(g.Scripts) == 0 {
			t.Fatalf("version %s has no scripts", g.Version)
		}
		var last string
		for _, s := range g.Scripts {
			rc, err := s.Open()
			if err != nil {
				t.Fatalf("open %s: %v", s.Name, err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read %s: %v", s.Name, err)
			}
			stmts, err := migration.SplitStatements(string(data))
			if err != nil {
				t.Fatalf("parse %s: %v", s.Name, err)
			}
			if len(stmts) == 0 {
				t.Fatalf("%s holds no statement", s.Name)
			}
			last = stmts[len(stmts)-1]
		}
		// The last statement of every version records it.
		want := "'" + g.Version.String() + "'"
		if !strings.Contains(last, `"DatabaseInfo"`) || !strings.Contains(last, want) {
			t.Fatalf("version %s does not end by storing itself: %q", g.Version, last)
		}
	}
}
