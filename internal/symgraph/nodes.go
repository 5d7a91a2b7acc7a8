package symgraph

import "reflect"

// SymbolNode is implemented by every named declaration in the program graph.
// FullName returns the dotted fully-qualified name (e.g. "pkg.mod.Class.method"),
// or "" when the node has not been assigned one yet.
type SymbolNode interface {
	Name() string
	FullName() string
}

// NameInfo carries the short and fully-qualified name of a declaration.
// It is embedded by every concrete node kind.
type NameInfo struct {
	Short     string
	Qualified string
}

func (n *NameInfo) Name() string     { return n.Short }
func (n *NameInfo) FullName() string { return n.Qualified }

// Span locates a declaration in its source file. It carries no node
// references and is never descended into for graph purposes.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// Param is a single formal parameter of a function or method.
type Param struct {
	Name string
	Type string
}

// Module is the top-level node for one source file.
type Module struct {
	NameInfo
	Path     string // absolute file path
	Language string
	Defs     SymbolTable
	Refs     []*Ref
}

// ClassDef is a class, struct, or interface declaration.
type ClassDef struct {
	NameInfo
	Span    Span
	Bases   []string
	Members SymbolTable
}

// FuncDef is a function or method definition. Methods keep a back
// reference to their owning class, so the graph is cyclic.
type FuncDef struct {
	NameInfo
	Span        Span
	Params      []Param
	IsOverload  bool
	IsDecorated bool
	Owner       *ClassDef
}

// OverloadedFuncDef groups the variants of one overloaded function.
// Each variant carries IsOverload and shares the group's fullname.
type OverloadedFuncDef struct {
	NameInfo
	Variants []*FuncDef
	Impl     *FuncDef
}

// Var is a mutable binding to a value: module globals, class attributes,
// locals promoted into the graph. Several Var nodes may legitimately share
// a fullname after a merge, so consistency auditing exempts them.
type Var struct {
	NameInfo
	Span       Span
	IsConstant bool
	Owner      *ClassDef
}

// Decorator wraps a decorated function together with the Var the decorated
// name is bound to. All three share the same fullname.
type Decorator struct {
	NameInfo
	Func *FuncDef
	Var  *Var
}

// TypeAlias binds a name to another type expression.
type TypeAlias struct {
	NameInfo
	Span   Span
	Target string
}

// PlaceholderInfo stands in for a class that has not been re-analyzed yet
// during an in-progress merge. It is never a real declaration and is
// skipped by consistency auditing.
type PlaceholderInfo struct {
	NameInfo
	Span Span
}

// Program is the long-lived root of the graph, holding every merged module
// keyed by dotted module name.
type Program struct {
	Modules map[string]*Module
}

func NewProgram() *Program {
	return &Program{Modules: make(map[string]*Module)}
}

// AddModule inserts or replaces a module wholesale. Incremental updates go
// through the merger instead.
func (p *Program) AddModule(m *Module) {
	p.Modules[m.FullName()] = m
}

func (p *Program) Module(name string) *Module {
	return p.Modules[name]
}

// KindOf returns the concrete kind tag of a node ("FuncDef", "ClassDef", ...).
func KindOf(n SymbolNode) string {
	t := reflect.TypeOf(n)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
