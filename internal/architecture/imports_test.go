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

// Each rule lists the internal packages a layer may not import. Paths are
// relative to the module's internal/ directory.
var layerRules = []struct {
	layer      string
	disallowed []string
}{
	{"domain/", []string{"data/", "services/", "http/", "app/", "inference/", "realtime/", "upload/"}},
	{"platform/", []string{"data/", "domain/", "services/", "http/", "app/"}},
	{"upload/", []string{"data/", "domain/", "services/", "http/", "app/"}},
	{"inference/", []string{"data/", "domain/", "services/", "http/", "app/"}},
	{"realtime/", []string{"data/", "services/", "http/", "app/"}},
	{"data/", []string{"services/", "http/", "app/", "inference/"}},
	{"services/", []string{"http/", "app/"}},
	{"http/", []string{"app/"}},
}

func TestImportBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)
	internalDir := filepath.Join(root, "internal")
	prefix := modulePath + "/internal/"
	fset := token.NewFileSet()

	var violations []string
	walkErr := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(internalDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		disallowed := disallowedFor(rel)
		if len(disallowed) == 0 {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil || !strings.HasPrefix(imp, prefix) {
				continue
			}
			target := strings.TrimPrefix(imp, prefix) + "/"
			for _, bad := range disallowed {
				if strings.HasPrefix(target, bad) {
					violations = append(violations, fmt.Sprintf("- internal/%s imports %q (layer may not use internal/%s)", rel, imp, bad))
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/: %v", walkErr)
	}
	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n%s", strings.Join(violations, "\n"))
	}
}

// Services must not depend on gin or the HTTP layer.
func TestServicesDoNotImportHTTPResponse(t *testing.T) {
	root, modulePath := moduleRoot(t)
	dir := filepath.Join(root, "internal", "services")
	fset := token.NewFileSet()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read services: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, e.Name()), nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", e.Name(), err)
		}
		for _, spec := range f.Imports {
			imp, _ := strconv.Unquote(spec.Path.Value)
			if imp == "github.com/gin-gonic/gin" || strings.HasPrefix(imp, modulePath+"/internal/http") {
				t.Errorf("services/%s imports %q", e.Name(), imp)
			}
		}
	}
}

func disallowedFor(rel string) []string {
	for _, r := range layerRules {
		if strings.HasPrefix(rel, r.layer) {
			return r.disallowed
		}
	}
	return nil
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found from %s", start)
		}
		dir = parent
	}
	mp, err := readModulePath(filepath.Join(dir, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}
	return dir, mp
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if mp, ok := strings.CutPrefix(line, "module "); ok {
			if mp = strings.TrimSpace(mp); mp != "" {
				return mp, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
