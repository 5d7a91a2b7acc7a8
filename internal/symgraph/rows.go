package symgraph

import "symgraph/util"

// Row is the flattened form of a symbol, as persisted in the index store.
type Row struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FullName  string `json:"full_name"`
	Kind      string `json:"kind"`
	FilePath  string `json:"file_path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	ColStart  int    `json:"col_start"`
	ColEnd    int    `json:"col_end"`
}

// Ref is a relationship between two stored symbols.
type Ref struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Relation string `json:"relation"` // calls, implements, references, imports
}

const (
	RelationCalls      = "calls"
	RelationImplements = "implements"
	RelationReferences = "references"
	RelationImports    = "imports"
)

// Flatten walks a module subtree and produces one Row per declaration,
// for bulk insertion into the store.
func Flatten(m *Module) []*Row {
	var rows []*Row
	rows = append(rows, &Row{
		ID:       util.GenerateNodeID(m.Path, m.FullName()),
		Name:     m.Name(),
		FullName: m.FullName(),
		Kind:     KindOf(m),
		FilePath: m.Path,
	})
	flattenTable(m.Path, m.Defs, &rows)
	return rows
}

func flattenTable(path string, table SymbolTable, rows *[]*Row) {
	for _, name := range table.Names() {
		node := table.Get(name)
		if node == nil {
			continue
		}
		*rows = append(*rows, rowFor(path, node))
		// Overload variants and decorator wrappers share their group's
		// fullname, so only the group node gets a row.
		if class, ok := node.(*ClassDef); ok {
			flattenTable(path, class.Members, rows)
		}
	}
}

func rowFor(path string, node SymbolNode) *Row {
	row := &Row{
		ID:       util.GenerateNodeID(path, node.FullName()),
		Name:     node.Name(),
		FullName: node.FullName(),
		Kind:     KindOf(node),
		FilePath: path,
	}
	if span := spanOf(node); span != nil {
		row.LineStart = span.StartLine
		row.LineEnd = span.EndLine
		row.ColStart = span.StartCol
		row.ColEnd = span.EndCol
	}
	return row
}

func spanOf(node SymbolNode) *Span {
	switch n := node.(type) {
	case *ClassDef:
		return &n.Span
	case *FuncDef:
		return &n.Span
	case *Var:
		return &n.Span
	case *TypeAlias:
		return &n.Span
	case *Decorator:
		if n.Func != nil {
			return &n.Func.Span
		}
	}
	return nil
}
