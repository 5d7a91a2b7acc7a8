// Package scanner parses workspace sources with tree-sitter and produces one
// symbol subtree per file, ready to be merged into the program graph.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	gitignore "github.com/sabhiram/go-gitignore"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tsgo "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tsjavascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tspython "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tstypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"symgraph/internal/symgraph"
)

var languagesByExt = map[string]string{
	".go":  "go",
	".py":  "python",
	".js":  "javascript",
	".mjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
}

// SupportedFile reports whether the path has an extension the scanner can parse.
func SupportedFile(path string) bool {
	_, ok := languagesByExt[filepath.Ext(path)]
	return ok
}

func language(name string) *sitter.Language {
	switch name {
	case "go":
		return sitter.NewLanguage(tsgo.Language())
	case "python":
		return sitter.NewLanguage(tspython.Language())
	case "javascript":
		return sitter.NewLanguage(tsjavascript.Language())
	case "typescript":
		return sitter.NewLanguage(tstypescript.LanguageTypescript())
	}
	return nil
}

// Scanner turns source files into symgraph module subtrees.
type Scanner struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Scanner {
	return &Scanner{log: log}
}

// Scan walks the workspace and scans every supported source file, honoring
// the workspace .gitignore. Files that fail to parse are skipped with a
// warning rather than failing the whole scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]*symgraph.Module, error) {
	ignore, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Msg("unreadable .gitignore, scanning everything")
	}

	var modules []*symgraph.Module
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := languagesByExt[filepath.Ext(path)]; !ok {
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}
		mod, scanErr := s.ScanFile(ctx, root, path)
		if scanErr != nil {
			s.log.Warn().Err(scanErr).Str("file", rel).Msg("skipping unparsable file")
			return nil
		}
		modules = append(modules, mod)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("workspace walk: %w", walkErr)
	}
	s.log.Info().Int("modules", len(modules)).Str("root", root).Msg("scan complete")
	return modules, nil
}

// ScanFile parses a single source file into a module subtree. The module's
// dotted name is derived from its workspace-relative path.
func (s *Scanner) ScanFile(ctx context.Context, root, path string) (*symgraph.Module, error) {
	langName, ok := languagesByExt[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	lang := language(langName)
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set %s grammar: %w", langName, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: no tree", path)
	}
	defer tree.Close()

	modName := ModuleName(root, path)
	mod := &symgraph.Module{
		NameInfo: symgraph.NameInfo{Short: lastSegment(modName), Qualified: modName},
		Path:     path,
		Language: langName,
		Defs:     symgraph.NewSymbolTable(),
	}

	decls, err := captureDecls(lang, langName, tree.RootNode(), source, path)
	if err != nil {
		return nil, err
	}
	buildTree(mod, decls)
	return mod, nil
}

// decl is one captured declaration before it is placed into a scope.
type decl struct {
	name      string
	nodeKind  string // grammar kind of the @def node
	span      symgraph.Span
	startByte uint
	endByte   uint
	decorated bool
	constant  bool
}

func captureDecls(lang *sitter.Language, langName string, rootNode *sitter.Node, source []byte, path string) ([]decl, error) {
	query, qerr := sitter.NewQuery(lang, Queries[langName])
	if qerr != nil {
		return nil, fmt.Errorf("compile %s query: %w", langName, qerr)
	}
	defer query.Close()
	captureNames := query.CaptureNames()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	var decls []decl
	matches := cursor.Matches(query, rootNode, source)
	for m := matches.Next(); m != nil; m = matches.Next() {
		var nameNode, defNode *sitter.Node
		for i := range m.Captures {
			c := &m.Captures[i]
			switch captureNames[c.Index] {
			case "name":
				nameNode = &c.Node
			case "def":
				defNode = &c.Node
			}
		}
		if nameNode == nil || defNode == nil {
			continue
		}
		start, end := defNode.StartPosition(), defNode.EndPosition()
		d := decl{
			name:      nameNode.Utf8Text(source),
			nodeKind:  defNode.Kind(),
			startByte: defNode.StartByte(),
			endByte:   defNode.EndByte(),
			span: symgraph.Span{
				File:      path,
				StartLine: int(start.Row) + 1,
				StartCol:  int(start.Column),
				EndLine:   int(end.Row) + 1,
				EndCol:    int(end.Column),
			},
		}
		if parent := defNode.Parent(); parent != nil && parent.Kind() == "decorated_definition" {
			d.decorated = true
		}
		if d.nodeKind == "const_declaration" {
			d.constant = true
		}
		decls = append(decls, d)
	}
	return decls, nil
}

// buildTree places captured declarations into nested scopes. Declarations are
// processed in source order; a stack of open class bodies (by byte range)
// decides which scope owns each one.
func buildTree(mod *symgraph.Module, decls []decl) {
	sort.Slice(decls, func(i, j int) bool {
		if decls[i].startByte != decls[j].startByte {
			return decls[i].startByte < decls[j].startByte
		}
		return decls[i].endByte > decls[j].endByte
	})

	type openClass struct {
		class   *symgraph.ClassDef
		endByte uint
	}
	var stack []openClass

	for _, d := range decls {
		for len(stack) > 0 && d.startByte >= stack[len(stack)-1].endByte {
			stack = stack[:len(stack)-1]
		}

		table := mod.Defs
		scopeFull := mod.FullName()
		var owner *symgraph.ClassDef
		if len(stack) > 0 {
			owner = stack[len(stack)-1].class
			table = owner.Members
			scopeFull = owner.FullName()
		}

		info := symgraph.NameInfo{Short: d.name, Qualified: scopeFull + "." + d.name}
		switch d.nodeKind {
		case "class_declaration", "class_definition", "interface_declaration", "type_declaration":
			class := &symgraph.ClassDef{NameInfo: info, Span: d.span, Members: symgraph.NewSymbolTable()}
			table.Put(d.name, class)
			stack = append(stack, openClass{class: class, endByte: d.endByte})
		case "type_alias_declaration":
			table.Put(d.name, &symgraph.TypeAlias{NameInfo: info, Span: d.span})
		case "function_declaration", "function_definition", "method_declaration", "method_definition":
			fn := &symgraph.FuncDef{NameInfo: info, Span: d.span, Owner: owner, IsDecorated: d.decorated}
			if d.decorated {
				bindDecorated(table, d.name, info, fn)
			} else {
				bindFunc(table, d.name, fn)
			}
		default:
			table.Put(d.name, &symgraph.Var{NameInfo: info, Span: d.span, IsConstant: d.constant, Owner: owner})
		}
	}
}

// bindFunc handles repeated same-name definitions in one scope: the second
// definition turns the binding into an overload group, as produced by
// typing overloads in Python and declaration overloads in TypeScript.
func bindFunc(table symgraph.SymbolTable, name string, fn *symgraph.FuncDef) {
	switch existing := table.Get(name).(type) {
	case *symgraph.FuncDef:
		existing.IsOverload = true
		fn.IsOverload = true
		table.Put(name, &symgraph.OverloadedFuncDef{
			NameInfo: fn.NameInfo,
			Variants: []*symgraph.FuncDef{existing, fn},
		})
	case *symgraph.OverloadedFuncDef:
		fn.IsOverload = true
		existing.Variants = append(existing.Variants, fn)
	default:
		table.Put(name, fn)
	}
}

// bindDecorated wraps a decorated function together with the Var its name is
// bound to; all three share the fullname.
func bindDecorated(table symgraph.SymbolTable, name string, info symgraph.NameInfo, fn *symgraph.FuncDef) {
	table.Put(name, &symgraph.Decorator{
		NameInfo: info,
		Func:     fn,
		Var:      &symgraph.Var{NameInfo: info, Span: fn.Span},
	})
}

// ModuleName converts a workspace-relative file path into a dotted module
// name: "pkg/sub/mod.py" -> "pkg.sub.mod".
func ModuleName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = filepath.ToSlash(rel)
	return strings.ReplaceAll(rel, "/", ".")
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
