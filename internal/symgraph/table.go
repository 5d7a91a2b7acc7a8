package symgraph

import "sort"

// SymbolTable maps short names to the declarations of one scope (a module
// body or a class body).
type SymbolTable map[string]*TableEntry

// TableEntry is one named binding in a scope. Indirection through an entry
// (rather than storing SymbolNode directly) lets the merger swap the node a
// name is bound to without rebuilding the table.
type TableEntry struct {
	Node SymbolNode
}

func NewSymbolTable() SymbolTable {
	return make(SymbolTable)
}

// Put binds name to node, replacing any previous binding.
func (t SymbolTable) Put(name string, node SymbolNode) {
	if e, ok := t[name]; ok {
		e.Node = node
		return
	}
	t[name] = &TableEntry{Node: node}
}

// Get returns the node bound to name, or nil.
func (t SymbolTable) Get(name string) SymbolNode {
	e, ok := t[name]
	if !ok {
		return nil
	}
	return e.Node
}

// Names returns the bound names in sorted order.
func (t SymbolTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
