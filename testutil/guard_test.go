package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		fn   func(string) bool
		in   string
		want bool
	}{
		{"internal", InternalImportForbidden, "plantkeeper/internal/core", true},
		{"internal-root", InternalImportForbidden, "internal/core", true},
		{"internal-pkg", InternalImportForbidden, "plantkeeper/pkg/domain", false},
		{"gin", TransportImportForbidden, "github.com/gin-gonic/gin", true},
		{"cors", TransportImportForbidden, "github.com/gin-contrib/cors", true},
		{"ws", TransportImportForbidden, "github.com/gorilla/websocket", true},
		{"nethttp", TransportImportForbidden, "net/http", false},
		{"pgx", BackendImportForbidden, "github.com/jackc/pgx/v5/stdlib", true},
		{"sqlite", BackendImportForbidden, "modernc.org/sqlite", true},
		{"s3", BackendImportForbidden, "github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"firestore", BackendImportForbidden, "cloud.google.com/go/firestore", true},
		{"sql", BackendImportForbidden, "database/sql", false},
	}
	for _, c := range cases {
		if got := c.fn(c.in); got != c.want {
			t.Fatalf("%s(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport \"fmt\"\nimport \"github.com/gin-gonic/gin\"\nvar _ = fmt.Sprint\nvar _ gin.H\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"github.com/gorilla/websocket\"\nvar _ websocket.Conn\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "sub"), "s.go", "package sub\nimport \"github.com/gorilla/websocket\"\n")

	viols, err := directImportViolations(dir, TransportImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "github.com/gin-gonic/gin (in a.go)" {
		t.Fatalf("unexpected violations: %v", viols)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")

	if _, err := directImportViolations(filepath.Join(dir, "missing"), TransportImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	writeFile(t, dir, "broken.go", "package tmp\nimport (")
	if _, err := directImportViolations(dir, TransportImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTransitiveDependencyViolationsWithStubLoader(t *testing.T) {
	orig := loadPackages
	t.Cleanup(func() { loadPackages = orig })

	leaf := &packages.Package{PkgPath: "modernc.org/sqlite", Imports: map[string]*packages.Package{}}
	mid := &packages.Package{PkgPath: "plantkeeper/internal/infra/persistence/sqlite", Imports: map[string]*packages.Package{"modernc.org/sqlite": leaf}}
	root := &packages.Package{PkgPath: "plantkeeper/internal/core", Imports: map[string]*packages.Package{"x": mid}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{root}, nil }

	viols, err := transitiveDependencyViolations("./...", BackendImportForbidden)
	if err != nil || len(viols) != 1 || viols[0] != "modernc.org/sqlite" {
		t.Fatalf("violations=%v err=%v", viols, err)
	}

	leaf.Errors = []packages.Error{{Msg: "no such package"}}
	if _, err := transitiveDependencyViolations("./...", BackendImportForbidden); err == nil {
		t.Fatalf("expected load error to surface")
	}

	loadPackages = func(string) ([]*packages.Package, error) { return nil, errors.New("boom") }
	if _, err := transitiveDependencyViolations("./...", BackendImportForbidden); err == nil {
		t.Fatalf("expected loader error")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailHelpers(t *testing.T) {
	var r recordingFatal
	failIfTransitiveViolations(&r, "reason", nil)
	failIfDirectViolations(&r, "reason", nil)
	if r.msg != "" {
		t.Fatalf("no violations must not fail: %q", r.msg)
	}
	failIfTransitiveViolations(&r, "layering", []string{"a", "b"})
	if r.msg == "" {
		t.Fatalf("expected failure message")
	}
	r.msg = ""
	failIfDirectViolations(&r, "layering", []string{"a"})
	if r.msg == "" {
		t.Fatalf("expected failure message")
	}
}
