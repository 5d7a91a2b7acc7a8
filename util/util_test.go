package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateNodeIDDeterministic(t *testing.T) {
	a := GenerateNodeID("/src/mod.py", "pkg.mod.Foo")
	b := GenerateNodeID("/src/mod.py", "pkg.mod.Foo")
	if a != b {
		t.Error("expected identical inputs to hash identically")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}

	c := GenerateNodeID("/src/other.py", "pkg.mod.Foo")
	if a == c {
		t.Error("expected different file paths to produce different IDs")
	}
}

func TestPathToURIRoundTrip(t *testing.T) {
	path, err := filepath.Abs("/tmp/project/main.go")
	if err != nil {
		t.Fatal(err)
	}

	uri := PathToURI(path)
	if !strings.HasPrefix(uri, "file://") {
		t.Errorf("expected file:// prefix, got %s", uri)
	}
	if got := URIToPath(uri); got != path {
		t.Errorf("round trip mismatch: %s != %s", got, path)
	}
}

func TestURIToPathPassthrough(t *testing.T) {
	if got := URIToPath("https://example.com/x"); got != "https://example.com/x" {
		t.Errorf("expected non-file URI unchanged, got %s", got)
	}
}

func TestFindGitRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindGitRoot(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != root {
		t.Errorf("expected %s, got %s", root, got)
	}
}

func TestFindGitRootNoRepo(t *testing.T) {
	dir := t.TempDir()
	got, err := FindGitRoot(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Errorf("expected start dir back, got %s", got)
	}
}
