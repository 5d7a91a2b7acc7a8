package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"symgraph/internal/symgraph"
)

// Arguments structs

type IndexArgs struct {
	Force bool `json:"force" jsonschema:"description:Force a full re-index even if no changes are detected"`
}

type IndexStatusArgs struct{}

type CheckGraphArgs struct {
	Verbose bool `json:"verbose" jsonschema:"description:If true, the report includes a dump of the offending nodes"`
}

type GetSymbolsInFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description:The absolute path to the file to analyze"`
}

type FindImpactArgs struct {
	SymbolName string `json:"symbol_name" jsonschema:"required,description:The name of the symbol to analyze for impact"`
}

type GetSymbolArgs struct {
	SymbolName string `json:"symbol_name" jsonschema:"required,description:The name of the symbol to locate"`
	WithSource bool   `json:"with_source" jsonschema:"description:If true, includes the source code of the symbol in the response"`
}

func textResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "index",
		Description: "Scans the workspace, merges the results into the symbol graph, and updates the index",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args IndexArgs) (*mcp.CallToolResult, any, error) {
		start := time.Now()
		nodes, edges, err := s.Index(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("Indexing failed: %v", err)), nil, nil
		}
		msg := fmt.Sprintf("Indexed %d nodes and %d edges in %.2fs", nodes, edges, time.Since(start).Seconds())
		return textResult(msg), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "index_status",
		Description: "Returns the current indexing status of the workspace",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args IndexStatusArgs) (*mcp.CallToolResult, any, error) {
		status, err, duration := s.GetIndexStatus()

		result := map[string]any{
			"status": string(status),
		}
		if duration > 0 {
			result["duration_seconds"] = duration.Seconds()
		}
		if err != nil {
			result["error"] = err.Error()
		}

		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		return textResult(string(jsonBytes)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "check_graph",
		Description: "Verifies the merged symbol graph has no duplicate definitions and reports any violation with its paths from the root",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CheckGraphArgs) (*mcp.CallToolResult, any, error) {
		report, err := s.CheckGraph(ctx, args.Verbose)
		if err != nil {
			msg := fmt.Sprintf("Graph inconsistency detected: %v", err)
			if report != "" {
				msg += "\n\n" + report
			}
			return errorResult(msg), nil, nil
		}
		return textResult("Graph is consistent."), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_symbols_in_file",
		Description: "Returns the structure of a file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetSymbolsInFileArgs) (*mcp.CallToolResult, any, error) {
		if result := s.waitIndexed(ctx); result != nil {
			return result, nil, nil
		}

		rows, err := s.store.GetSymbolsInFile(ctx, args.FilePath)
		if err != nil {
			return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
		}

		type SimpleNode struct {
			Name  string `json:"name"`
			Kind  string `json:"kind"`
			Range string `json:"range"`
		}
		var simple []SimpleNode
		for _, r := range rows {
			simple = append(simple, SimpleNode{
				Name:  r.Name,
				Kind:  r.Kind,
				Range: fmt.Sprintf("%d:%d-%d:%d", r.LineStart, r.ColStart, r.LineEnd, r.ColEnd),
			})
		}

		jsonBytes, _ := json.MarshalIndent(simple, "", "  ")
		return textResult(string(jsonBytes)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_impact",
		Description: "Finds downstream dependents of a symbol",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FindImpactArgs) (*mcp.CallToolResult, any, error) {
		if result := s.waitIndexed(ctx); result != nil {
			return result, nil, nil
		}

		rows, err := s.store.FindImpact(ctx, args.SymbolName)
		if err != nil {
			return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
		}

		if len(rows) == 0 {
			return textResult("No impacted symbols found."), nil, nil
		}

		type ImpactNode struct {
			Name     string `json:"name"`
			FilePath string `json:"file_path"`
			Kind     string `json:"kind"`
		}
		var impacted []ImpactNode
		for _, r := range rows {
			impacted = append(impacted, ImpactNode{
				Name:     r.Name,
				FilePath: r.FilePath,
				Kind:     r.Kind,
			})
		}

		jsonBytes, _ := json.MarshalIndent(impacted, "", "  ")
		return textResult(string(jsonBytes)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_symbol",
		Description: "Finds the location and optionally the source code of a symbol",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetSymbolArgs) (*mcp.CallToolResult, any, error) {
		if result := s.waitIndexed(ctx); result != nil {
			return result, nil, nil
		}

		rows, err := s.store.GetSymbolLocation(ctx, args.SymbolName)
		if err != nil {
			return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
		}

		if len(rows) == 0 {
			return textResult("Symbol not found."), nil, nil
		}

		type SymbolInfo struct {
			symgraph.Row
			Source string `json:"source,omitempty"`
		}

		var info []SymbolInfo
		for _, r := range rows {
			si := SymbolInfo{Row: *r}
			if args.WithSource {
				source, err := s.readSource(r.FilePath, r.LineStart, r.LineEnd)
				if err != nil {
					s.log.Warn().Err(err).Str("symbol", r.Name).Str("file", r.FilePath).
						Msg("failed to read source")
				} else {
					si.Source = source
				}
			}
			info = append(info, si)
		}

		jsonBytes, _ := json.MarshalIndent(info, "", "  ")
		return textResult(string(jsonBytes)), nil, nil
	})
}

// waitIndexed blocks briefly for the initial index. Returns a non-nil error
// result when querying cannot proceed yet.
func (s *Server) waitIndexed(ctx context.Context) *mcp.CallToolResult {
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.WaitForIndex(waitCtx); err != nil {
		status, indexErr, _ := s.GetIndexStatus()
		if indexErr != nil {
			return errorResult(fmt.Sprintf("Indexing failed: %v", indexErr))
		}
		if status == IndexStatusInProgress {
			return errorResult("Indexing in progress, please try again")
		}
		return errorResult(fmt.Sprintf("Indexing wait failed: %v", err))
	}
	return nil
}

func (s *Server) readSource(filePath string, lineStart, lineEnd int) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var builder strings.Builder
	sc := bufio.NewScanner(f)
	currentLine := 1
	first := true
	for sc.Scan() {
		if currentLine >= lineStart && currentLine <= lineEnd {
			if !first {
				builder.WriteByte('\n')
			}
			builder.Write(sc.Bytes())
			first = false
		}
		if currentLine > lineEnd {
			break
		}
		currentLine++
	}

	if err := sc.Err(); err != nil {
		return "", err
	}

	return builder.String(), nil
}
