package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// layers lists, per package tree under internal/, the trees it may not import.
// Adapters and records sit below the pipeline; only http and app see services.
var layers = []struct {
	dir    string
	denied []string
}{
	{"platform", []string{"data", "pipeline", "services", "http", "app"}},
	{"domain", []string{"platform", "data", "pipeline", "services", "http", "app"}},
	{"data", []string{"pipeline", "services", "http", "app"}},
	{"pipeline", []string{"data", "services", "http", "app"}},
	{"services", []string{"http", "app"}},
	{"observability", []string{"data", "pipeline", "services", "http", "app"}},
}

func TestImportBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)
	fset := token.NewFileSet()

	var violations []string
	for _, layer := range layers {
		dir := filepath.Join(root, "internal", layer.dir)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
				return err
			}
			f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			for _, spec := range f.Imports {
				imp, err := strconv.Unquote(spec.Path.Value)
				if err != nil {
					continue
				}
				for _, denied := range layer.denied {
					prefix := modulePath + "/internal/" + denied
					if imp == prefix || strings.HasPrefix(imp, prefix+"/") {
						violations = append(violations, fmt.Sprintf("- %s imports %q (%s may not depend on %s)", filepath.ToSlash(rel), imp, layer.dir, denied))
					}
				}
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			t.Fatalf("walk %s: %v", dir, err)
		}
	}
	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n%s", strings.Join(violations, "\n"))
	}
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if f, err := os.Open(filepath.Join(dir, "go.mod")); err == nil {
			defer f.Close()
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); strings.HasPrefix(line, "module ") {
					return dir, strings.TrimSpace(strings.TrimPrefix(line, "module "))
				}
			}
			t.Fatalf("module path not found in %s/go.mod", dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found")
		}
		dir = parent
	}
}
