package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symgraph/internal/symgraph"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func row(id, name, full, kind, file string, lineStart, lineEnd int) *symgraph.Row {
	return &symgraph.Row{
		ID: id, Name: name, FullName: full, Kind: kind,
		FilePath: file, LineStart: lineStart, LineEnd: lineEnd,
	}
}

func TestUpsertAndQuery(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.BulkUpsertNodes(ctx, []*symgraph.Row{
		row("1", "Foo", "pkg.mod.Foo", "FuncDef", "/w/mod.py", 3, 8),
		row("2", "C", "pkg.mod.C", "ClassDef", "/w/mod.py", 10, 30),
	}))

	got, err := s.GetSymbolsInFile(ctx, "/w/mod.py")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pkg.mod.Foo", got[0].FullName)

	byName, err := s.GetSymbolLocation(ctx, "Foo")
	require.NoError(t, err)
	require.Len(t, byName, 1)

	byFull, err := s.GetSymbolLocation(ctx, "pkg.mod.C")
	require.NoError(t, err)
	require.Len(t, byFull, 1)
	assert.Equal(t, "ClassDef", byFull[0].Kind)
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	r := row("1", "Foo", "pkg.mod.Foo", "FuncDef", "/w/mod.py", 3, 8)
	require.NoError(t, s.BulkUpsertNodes(ctx, []*symgraph.Row{r}))
	r.LineStart = 5
	require.NoError(t, s.BulkUpsertNodes(ctx, []*symgraph.Row{r}))

	got, err := s.GetSymbolsInFile(ctx, "/w/mod.py")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].LineStart)
}

func TestPruneStaleFiles(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.BulkUpsertNodes(ctx, []*symgraph.Row{
		row("1", "Foo", "a.Foo", "FuncDef", "/w/a.py", 1, 2),
		row("2", "Bar", "b.Bar", "FuncDef", "/w/b.py", 1, 2),
	}))
	require.NoError(t, s.BulkUpsertEdges(ctx, []*symgraph.Ref{
		{SourceID: "2", TargetID: "1", Relation: symgraph.RelationReferences},
	}))

	require.NoError(t, s.PruneStaleFiles(ctx, []string{"/w/a.py"}))

	kept, err := s.GetSymbolsInFile(ctx, "/w/a.py")
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	gone, err := s.GetSymbolsInFile(ctx, "/w/b.py")
	require.NoError(t, err)
	assert.Empty(t, gone)

	impact, err := s.FindImpact(ctx, "Foo")
	require.NoError(t, err)
	assert.Empty(t, impact, "edges from pruned files must go too")
}

func TestFindImpact(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.BulkUpsertNodes(ctx, []*symgraph.Row{
		row("1", "Foo", "a.Foo", "FuncDef", "/w/a.py", 1, 2),
		row("2", "Bar", "b.Bar", "FuncDef", "/w/b.py", 1, 2),
	}))
	require.NoError(t, s.BulkUpsertEdges(ctx, []*symgraph.Ref{
		{SourceID: "2", TargetID: "1", Relation: symgraph.RelationCalls},
	}))

	impact, err := s.FindImpact(ctx, "Foo")
	require.NoError(t, err)
	require.Len(t, impact, 1)
	assert.Equal(t, "b.Bar", impact[0].FullName)
}

func TestGetSymbolAt(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.BulkUpsertNodes(ctx, []*symgraph.Row{
		row("1", "C", "a.C", "ClassDef", "/w/a.py", 1, 20),
		row("2", "m", "a.C.m", "FuncDef", "/w/a.py", 5, 10),
	}))

	inner, err := s.GetSymbolAt(ctx, "/w/a.py", 7)
	require.NoError(t, err)
	require.NotNil(t, inner)
	assert.Equal(t, "a.C.m", inner.FullName)

	outer, err := s.GetSymbolAt(ctx, "/w/a.py", 15)
	require.NoError(t, err)
	require.NotNil(t, outer)
	assert.Equal(t, "a.C", outer.FullName)

	none, err := s.GetSymbolAt(ctx, "/w/a.py", 99)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRecordAudit(t *testing.T) {
	s := openTest(t)
	id, err := s.RecordAudit(context.Background(), AuditRecord{
		Status:   "violation",
		Kind:     "FuncDef",
		FullName: "pkg.mod.Foo",
		Detail:   "duplicate nodes",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
