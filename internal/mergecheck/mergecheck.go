// Package mergecheck audits the program graph after an incremental merge.
// Two logically distinct declarations must never both claim the same
// fully-qualified name; such a collision means the merge failed to unify
// identity and later lookups would behave nondeterministically.
package mergecheck

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/davecgh/go-spew/spew"

	"symgraph/internal/objgraph"
	"symgraph/internal/symgraph"
)

// ConsistencyError reports a fatal graph inconsistency. It is returned
// rather than panicking so the host decides whether to treat it as a hard
// crash, a logged skip, or a test failure.
type ConsistencyError struct {
	Kind     string // concrete node kind
	FullName string // colliding fullname; "" when the violation is an absent name
	Name     string // short name, set for the absent-name case
}

func (e *ConsistencyError) Error() string {
	if e.FullName == "" {
		return fmt.Sprintf("graph inconsistency: %s node %q has no fully-qualified name", e.Kind, e.Name)
	}
	return fmt.Sprintf("graph inconsistency: duplicate %s nodes with fullname %q", e.Kind, e.FullName)
}

type options struct {
	out     io.Writer
	verbose bool
}

// Option configures a single consistency check.
type Option func(*options)

// WithOutput redirects diagnostic output (default: stderr).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithVerbose additionally dumps the full contents of both colliding nodes.
// Intended for developer debugging only.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// CheckConsistency fails if two graph declarations of the same concrete kind
// reachable from root share a fully-qualified name, or if any reachable
// declaration has no fullname at all. On a violation it writes both access
// paths to the diagnostic sink and returns a *ConsistencyError; otherwise it
// returns nil with no observable effect.
//
// Kinds the merge duplicates by design are exempt: Var bindings, Decorator
// wrappers, and overload variants. A same-name collision between different
// concrete kinds is tolerated, since a kind change means the merge
// intentionally replaced the declaration.
//
// The caller must guarantee the graph is quiescent for the duration of the
// call. This is a one-shot audit: the snapshot it builds is discarded on
// return.
func CheckConsistency(root any, opts ...Option) error {
	o := options{out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	snap := objgraph.Traverse(root)

	seen := make(map[string]symgraph.SymbolNode)
	firstID := make(map[string]objgraph.ID)
	for id, obj := range snap.Objects {
		sym, ok := obj.(symgraph.SymbolNode)
		if !ok {
			continue
		}
		if _, ok := obj.(*symgraph.PlaceholderInfo); ok {
			// Mid-merge stub, not a real declaration.
			continue
		}

		fn := sym.FullName()
		if fn == "" {
			return &ConsistencyError{Kind: symgraph.KindOf(sym), Name: sym.Name()}
		}

		// Kinds expected to carry duplicate names.
		switch n := sym.(type) {
		case *symgraph.Var, *symgraph.Decorator:
			continue
		case *symgraph.FuncDef:
			if n.IsOverload {
				continue
			}
		}

		prev, dup := seen[fn]
		if !dup {
			seen[fn] = sym
			firstID[fn] = id
			continue
		}

		// If the kind changed, the merge replaced the node on purpose.
		if reflect.TypeOf(sym) != reflect.TypeOf(prev) {
			continue
		}

		kind := symgraph.KindOf(sym)
		prevID := firstID[fn]
		fmt.Fprintf(o.out, "\nDuplicate %q nodes with fullname %q found:\n", kind, fn)
		fmt.Fprintf(o.out, "[1] %d: %s\n", id, RenderPath(snap.PathTo(id)))
		fmt.Fprintf(o.out, "[2] %d: %s\n", prevID, RenderPath(snap.PathTo(prevID)))
		if o.verbose {
			fmt.Fprintln(o.out, "---")
			fmt.Fprintf(o.out, "%d %s", id, spew.Sdump(sym))
			fmt.Fprintln(o.out, "---")
			fmt.Fprintf(o.out, "%d %s", prevID, spew.Sdump(prev))
		}
		return &ConsistencyError{Kind: kind, FullName: fn}
	}
	return nil
}
