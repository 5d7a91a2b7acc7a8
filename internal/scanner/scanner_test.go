package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symgraph/internal/merger"
	"symgraph/internal/symgraph"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const pythonSource = `CONST = 1

@property
def wrapped():
    pass

def top(a, b):
    pass

def over(x): ...

def over(x, y): ...

class C:
    def m(self):
        pass
`

func TestScanFilePython(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "app.py", pythonSource)

	s := New(zerolog.Nop())
	mod, err := s.ScanFile(context.Background(), root, path)
	require.NoError(t, err)

	assert.Equal(t, "app", mod.FullName())
	assert.Equal(t, "python", mod.Language)

	v, ok := mod.Defs.Get("CONST").(*symgraph.Var)
	require.True(t, ok, "CONST should be a Var")
	assert.Equal(t, "app.CONST", v.FullName())

	dec, ok := mod.Defs.Get("wrapped").(*symgraph.Decorator)
	require.True(t, ok, "wrapped should be a Decorator")
	assert.Equal(t, "app.wrapped", dec.FullName())
	require.NotNil(t, dec.Func)
	assert.Equal(t, "app.wrapped", dec.Func.FullName())
	assert.True(t, dec.Func.IsDecorated)

	fn, ok := mod.Defs.Get("top").(*symgraph.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "app.top", fn.FullName())
	assert.Positive(t, fn.Span.StartLine)

	group, ok := mod.Defs.Get("over").(*symgraph.OverloadedFuncDef)
	require.True(t, ok, "repeated defs should fold into an overload group")
	require.Len(t, group.Variants, 2)
	for _, variant := range group.Variants {
		assert.True(t, variant.IsOverload)
		assert.Equal(t, "app.over", variant.FullName())
	}

	class, ok := mod.Defs.Get("C").(*symgraph.ClassDef)
	require.True(t, ok)
	method, ok := class.Members.Get("m").(*symgraph.FuncDef)
	require.True(t, ok, "m should live in the class scope")
	assert.Equal(t, "app.C.m", method.FullName())
	assert.Same(t, class, method.Owner)
}

func TestScanFileGo(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "main.go", `package main

func Hello() {}

type Point struct{ X int }

var Scale = 2

const Version = "1"
`)

	s := New(zerolog.Nop())
	mod, err := s.ScanFile(context.Background(), root, path)
	require.NoError(t, err)

	_, ok := mod.Defs.Get("Hello").(*symgraph.FuncDef)
	assert.True(t, ok)
	_, ok = mod.Defs.Get("Point").(*symgraph.ClassDef)
	assert.True(t, ok)
	scale, ok := mod.Defs.Get("Scale").(*symgraph.Var)
	require.True(t, ok)
	assert.False(t, scale.IsConstant)
	version, ok := mod.Defs.Get("Version").(*symgraph.Var)
	require.True(t, ok)
	assert.True(t, version.IsConstant)
}

func TestScanHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "ignored.py\n")
	writeFile(t, root, "kept.py", "def f():\n    pass\n")
	writeFile(t, root, "ignored.py", "def g():\n    pass\n")

	s := New(zerolog.Nop())
	modules, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, modules, 1)
	assert.Equal(t, "kept", modules[0].FullName())
}

func TestScanNestedPathNames(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, filepath.Join("pkg", "util.py"), "def helper():\n    pass\n")

	s := New(zerolog.Nop())
	modules, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, modules, 1)
	assert.Equal(t, "pkg.util", modules[0].FullName())
	helper := modules[0].Defs.Get("helper")
	require.NotNil(t, helper)
	assert.Equal(t, "pkg.util.helper", helper.FullName())
}

func TestScanThenMergeAuditsClean(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def f():\n    pass\n")
	writeFile(t, root, "b.py", "def f():\n    pass\n\nclass K:\n    pass\n")

	s := New(zerolog.Nop())
	modules, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	g := merger.New(zerolog.Nop(), merger.WithAudit(false))
	for _, mod := range modules {
		require.NoError(t, g.MergeModule(mod))
	}
	// Re-scan and re-merge: identities must unify, the audit stays clean.
	modules, err = s.Scan(context.Background(), root)
	require.NoError(t, err)
	for _, mod := range modules {
		require.NoError(t, g.MergeModule(mod))
	}
}
