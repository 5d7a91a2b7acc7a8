// Package merger unifies freshly scanned module subtrees into the long-lived
// program graph. Declarations whose shape is unchanged keep their node
// identity across merges, so references held elsewhere in the graph stay
// valid; everything else is rebound.
package merger

import (
	"fmt"

	"github.com/rs/zerolog"

	"symgraph/internal/mergecheck"
	"symgraph/internal/symgraph"
)

// GraphManager owns the program graph and serializes merges into it. It is
// not safe for concurrent use; the consistency audit in particular assumes a
// quiescent graph.
type GraphManager struct {
	Program *symgraph.Program

	audit   bool
	verbose bool
	log     zerolog.Logger
}

// Option configures a GraphManager.
type Option func(*GraphManager)

// WithAudit runs a consistency audit after every merge. Expensive; meant for
// debugging the merge itself, not for routine indexing.
func WithAudit(verbose bool) Option {
	return func(g *GraphManager) {
		g.audit = true
		g.verbose = verbose
	}
}

func New(log zerolog.Logger, opts ...Option) *GraphManager {
	g := &GraphManager{
		Program: symgraph.NewProgram(),
		log:     log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MergeModule unifies one freshly scanned module into the program. If an
// audit is configured and fails, the graph is left as merged (auditing
// detects, it never repairs) and the consistency error is returned.
func (g *GraphManager) MergeModule(mod *symgraph.Module) error {
	name := mod.FullName()
	existing := g.Program.Module(name)
	if existing == nil {
		g.Program.AddModule(mod)
		g.log.Debug().Str("module", name).Msg("added module")
	} else {
		mergeModule(existing, mod)
		g.log.Debug().Str("module", name).Msg("merged module")
	}

	if g.audit {
		if err := g.Audit(); err != nil {
			return fmt.Errorf("post-merge audit of %q: %w", name, err)
		}
	}
	return nil
}

// DropModule removes a module wholesale (file deleted).
func (g *GraphManager) DropModule(name string) {
	delete(g.Program.Modules, name)
}

// Audit runs the merge-consistency check over everything reachable from the
// manager. A returned *mergecheck.ConsistencyError means the graph is
// corrupt; the caller decides whether that aborts the process.
func (g *GraphManager) Audit(opts ...mergecheck.Option) error {
	if g.verbose {
		opts = append(opts, mergecheck.WithVerbose(true))
	}
	return mergecheck.CheckConsistency(g, opts...)
}

// mergeModule updates old in place from fresh, keeping old's identity.
func mergeModule(old, fresh *symgraph.Module) {
	old.Path = fresh.Path
	old.Language = fresh.Language
	old.Refs = fresh.Refs
	mergeTable(old.Defs, fresh.Defs)
}

// mergeTable reconciles two scopes: same-kind bindings are updated in place,
// kind changes rebind to the fresh node, and names gone from fresh are
// dropped.
func mergeTable(old, fresh symgraph.SymbolTable) {
	for name, entry := range fresh {
		prev, ok := old[name]
		if !ok {
			old[name] = entry
			continue
		}
		if !mergeNode(prev.Node, entry.Node) {
			prev.Node = entry.Node
		}
	}
	for name := range old {
		if _, ok := fresh[name]; !ok {
			delete(old, name)
		}
	}
}

// mergeNode copies fresh's contents into old when both are the same kind,
// preserving old's identity. Reports whether an in-place merge happened.
func mergeNode(old, fresh symgraph.SymbolNode) bool {
	switch prev := old.(type) {
	case *symgraph.FuncDef:
		next, ok := fresh.(*symgraph.FuncDef)
		if !ok {
			return false
		}
		prev.Qualified = next.Qualified
		prev.Span = next.Span
		prev.Params = next.Params
		prev.IsOverload = next.IsOverload
		prev.IsDecorated = next.IsDecorated
		return true
	case *symgraph.ClassDef:
		next, ok := fresh.(*symgraph.ClassDef)
		if !ok {
			return false
		}
		prev.Qualified = next.Qualified
		prev.Span = next.Span
		prev.Bases = next.Bases
		mergeTable(prev.Members, next.Members)
		// Members adopted from the fresh subtree still point at the fresh
		// class; rebind them or the stale class stays reachable.
		for _, entry := range prev.Members {
			switch m := entry.Node.(type) {
			case *symgraph.FuncDef:
				m.Owner = prev
			case *symgraph.Var:
				m.Owner = prev
			}
		}
		return true
	case *symgraph.Var:
		next, ok := fresh.(*symgraph.Var)
		if !ok {
			return false
		}
		prev.Qualified = next.Qualified
		prev.Span = next.Span
		prev.IsConstant = next.IsConstant
		return true
	case *symgraph.TypeAlias:
		next, ok := fresh.(*symgraph.TypeAlias)
		if !ok {
			return false
		}
		prev.Qualified = next.Qualified
		prev.Span = next.Span
		prev.Target = next.Target
		return true
	case *symgraph.OverloadedFuncDef:
		next, ok := fresh.(*symgraph.OverloadedFuncDef)
		if !ok {
			return false
		}
		prev.Qualified = next.Qualified
		prev.Variants = next.Variants
		prev.Impl = next.Impl
		return true
	case *symgraph.Decorator:
		next, ok := fresh.(*symgraph.Decorator)
		if !ok {
			return false
		}
		prev.Qualified = next.Qualified
		prev.Func = next.Func
		prev.Var = next.Var
		return true
	}
	return false
}
