package mergecheck

import (
	"fmt"
	"strings"

	"symgraph/internal/objgraph"
	"symgraph/internal/symgraph"
)

// Kinds whose tag adds nothing to a path: they sit at the top of the graph
// and are not part of any class hierarchy, so there is no ambiguity to
// resolve. Matched by name to avoid depending on the packages defining them.
var untaggedKinds = map[string]bool{
	"Program":      true,
	"GraphManager": true,
}

// RenderPath formats a reconstructed access path for diagnostics. The output
// has no parsing contract; it only needs to be unambiguous enough for a
// human to locate the offending reference.
//
// Index/key subscripts are carried inside edge labels by the walker, so a
// step through a container renders as e.g. `.Defs["Foo"]`. A step landing on
// a Var is annotated with its own short name, since the same generic label
// recurs under many scopes.
func RenderPath(path []objgraph.Step) string {
	var b strings.Builder
	b.WriteString("<root>")
	for _, step := range path {
		label := step.Label
		if label != "" && !strings.HasPrefix(label, "[") {
			b.WriteByte('.')
		}
		b.WriteString(label)
		if v, ok := step.Object.(*symgraph.Var); ok {
			fmt.Fprintf(&b, "(Var:%s)", v.Name())
			continue
		}
		kind := kindName(step.Object)
		if kind == "" || untaggedKinds[kind] {
			continue
		}
		fmt.Fprintf(&b, "(%s)", kind)
	}
	return b.String()
}

func kindName(obj any) string {
	if sym, ok := obj.(symgraph.SymbolNode); ok {
		return symgraph.KindOf(sym)
	}
	t := strings.TrimPrefix(fmt.Sprintf("%T", obj), "*")
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return t
}
