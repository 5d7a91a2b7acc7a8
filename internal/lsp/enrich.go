package lsp

import (
	"context"

	"symgraph/internal/symgraph"
	"symgraph/util"
)

// SymbolLocator resolves a file position to the innermost stored symbol.
// Satisfied by the index store.
type SymbolLocator interface {
	GetSymbolAt(ctx context.Context, filePath string, line int) (*symgraph.Row, error)
}

// Enrich asks the language server for references to every function and class
// row and maps each referencing location back to its enclosing stored
// symbol, producing reference edges. Failures on individual symbols degrade
// to missing edges, never to a failed index.
func (c *Client) Enrich(ctx context.Context, rows []*symgraph.Row, locator SymbolLocator) ([]*symgraph.Ref, error) {
	var refs []*symgraph.Ref
	for _, row := range rows {
		if ctx.Err() != nil {
			return refs, ctx.Err()
		}
		if row.Kind != "FuncDef" && row.Kind != "ClassDef" && row.Kind != "OverloadedFuncDef" {
			continue
		}
		if err := c.OpenFile(row.FilePath, ""); err != nil {
			c.log.Warn().Err(err).Str("file", row.FilePath).Msg("didOpen failed")
			continue
		}
		locations, err := c.References(row.FilePath, row.LineStart-1, row.ColStart)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", row.FullName).Msg("references lookup failed")
			continue
		}
		for _, loc := range locations {
			source, err := locator.GetSymbolAt(ctx, util.URIToPath(loc.URI), loc.Range.Start.Line+1)
			if err != nil || source == nil || source.ID == row.ID {
				continue
			}
			refs = append(refs, &symgraph.Ref{
				SourceID: source.ID,
				TargetID: row.ID,
				Relation: symgraph.RelationReferences,
			})
		}
	}
	return refs, nil
}
