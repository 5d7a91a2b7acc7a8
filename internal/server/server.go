// Package server exposes the symgraph index over MCP stdio.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"symgraph/internal/config"
	"symgraph/internal/lsp"
	"symgraph/internal/mergecheck"
	"symgraph/internal/merger"
	"symgraph/internal/scanner"
	"symgraph/internal/store"
	"symgraph/internal/symgraph"
)

// IndexStatus tracks the lifecycle of workspace indexing.
type IndexStatus string

const (
	IndexStatusPending    IndexStatus = "pending"
	IndexStatusInProgress IndexStatus = "in_progress"
	IndexStatusReady      IndexStatus = "ready"
	IndexStatusFailed     IndexStatus = "failed"
)

const defaultSystemPrompt = `# symgraph

symgraph maintains an incremental symbol graph of this workspace. Use the
index tool after large changes, get_symbols_in_file and get_symbol to
navigate, find_impact to see downstream dependents, and check_graph to
verify the merged graph has no duplicate definitions.`

// Server wires the scan/merge/store pipeline behind an MCP server.
type Server struct {
	mcpServer    *mcp.Server
	cfg          *config.Config
	scanner      *scanner.Scanner
	merger       *merger.GraphManager
	store        *store.Store
	lsp          *lsp.Client // nil when enrichment is disabled
	log          zerolog.Logger
	systemPrompt string

	indexMu       sync.RWMutex
	indexStatus   IndexStatus
	indexErr      error
	indexDuration time.Duration
	indexReady    chan struct{}

	// graphMu serializes every merge and audit on the shared graph. The
	// background initial index, watch-driven reindexes, and the MCP tools
	// can otherwise overlap, and the audit requires a quiescent graph.
	graphMu sync.Mutex
}

// New creates a Server. lspClient may be nil to skip reference enrichment.
func New(cfg *config.Config, st *store.Store, lspClient *lsp.Client, log zerolog.Logger) *Server {
	mergerOpts := []merger.Option{}
	if cfg.Audit.Enabled {
		mergerOpts = append(mergerOpts, merger.WithAudit(cfg.Audit.Verbose))
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "symgraph",
			Version: "0.1.0",
		}, nil),
		cfg:          cfg,
		scanner:      scanner.New(log),
		merger:       merger.New(log, mergerOpts...),
		store:        st,
		lsp:          lspClient,
		log:          log,
		systemPrompt: defaultSystemPrompt,
		indexStatus:  IndexStatusPending,
		indexReady:   make(chan struct{}),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves MCP over stdio until ctx is cancelled. The initial index runs
// in the background so the server answers requests immediately.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		if _, _, err := s.Index(ctx); err != nil {
			s.log.Error().Err(err).Msg("initial indexing failed")
		}
	}()
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Index runs the full pipeline: scan, merge with audit, flatten to rows,
// persist, prune stale files, and optionally enrich references via LSP.
// Returns the node and edge counts.
func (s *Server) Index(ctx context.Context) (int, int, error) {
	s.indexMu.Lock()
	if s.indexStatus == IndexStatusInProgress {
		s.indexMu.Unlock()
		return 0, 0, fmt.Errorf("indexing already in progress")
	}
	if s.indexStatus == IndexStatusReady || s.indexStatus == IndexStatusFailed {
		s.indexReady = make(chan struct{})
	}
	s.indexMu.Unlock()

	s.setIndexStatus(IndexStatusInProgress, nil)
	start := time.Now()

	nodes, edges, err := s.runPipeline(ctx)
	if err != nil {
		s.setIndexStatus(IndexStatusFailed, err)
		return 0, 0, err
	}

	s.indexMu.Lock()
	s.indexDuration = time.Since(start)
	s.indexMu.Unlock()
	s.setIndexStatus(IndexStatusReady, nil)
	return nodes, edges, nil
}

func (s *Server) runPipeline(ctx context.Context) (int, int, error) {
	modules, err := s.scanner.Scan(ctx, s.cfg.Workspace)
	if err != nil {
		return 0, 0, fmt.Errorf("scan failed: %w", err)
	}

	s.graphMu.Lock()
	var rows []*symgraph.Row
	for _, mod := range modules {
		if err := s.merger.MergeModule(mod); err != nil {
			s.graphMu.Unlock()
			s.recordAuditFailure(ctx, err)
			return 0, 0, fmt.Errorf("merge failed for %s: %w", mod.FullName(), err)
		}
		rows = append(rows, symgraph.Flatten(mod)...)
	}
	s.graphMu.Unlock()

	if s.cfg.Audit.Enabled {
		s.recordAuditSuccess(ctx)
	}

	if err := s.store.BulkUpsertNodes(ctx, rows); err != nil {
		return 0, 0, fmt.Errorf("failed to store nodes: %w", err)
	}

	validFiles := make(map[string]bool)
	var validFileList []string
	for _, r := range rows {
		if !validFiles[r.FilePath] {
			validFiles[r.FilePath] = true
			validFileList = append(validFileList, r.FilePath)
		}
	}
	if err := s.store.PruneStaleFiles(ctx, validFileList); err != nil {
		s.log.Warn().Err(err).Msg("failed to prune stale files")
	}

	edgeCount := 0
	if s.lsp != nil {
		refs, err := s.lsp.Enrich(ctx, rows, s.store)
		if err != nil {
			return 0, 0, fmt.Errorf("reference enrichment failed: %w", err)
		}
		if err := s.store.BulkUpsertEdges(ctx, refs); err != nil {
			return 0, 0, fmt.Errorf("failed to store edges: %w", err)
		}
		edgeCount = len(refs)
	}

	return len(rows), edgeCount, nil
}

// ReindexFiles rescans a set of changed files and merges the results,
// used by the watch loop. Deleted files drop their module from the graph.
func (s *Server) ReindexFiles(ctx context.Context, paths []string) error {
	var rows []*symgraph.Row
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			s.graphMu.Lock()
			s.merger.DropModule(scanner.ModuleName(s.cfg.Workspace, path))
			s.graphMu.Unlock()
			continue
		}
		mod, err := s.scanner.ScanFile(ctx, s.cfg.Workspace, path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("rescan failed, skipping file")
			continue
		}
		if mod == nil {
			continue
		}
		s.graphMu.Lock()
		err = s.merger.MergeModule(mod)
		if err == nil {
			rows = append(rows, symgraph.Flatten(mod)...)
		}
		s.graphMu.Unlock()
		if err != nil {
			s.recordAuditFailure(ctx, err)
			return fmt.Errorf("merge failed for %s: %w", mod.FullName(), err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.store.BulkUpsertNodes(ctx, rows); err != nil {
		return fmt.Errorf("failed to store nodes: %w", err)
	}
	return nil
}

// CheckGraph runs an on-demand consistency audit over the in-memory graph
// and returns the rendered report, empty when the graph is clean.
func (s *Server) CheckGraph(ctx context.Context, verbose bool) (string, error) {
	var report strings.Builder
	s.graphMu.Lock()
	err := s.merger.Audit(
		mergecheck.WithOutput(&report),
		mergecheck.WithVerbose(verbose),
	)
	s.graphMu.Unlock()
	if err != nil {
		s.recordAuditFailure(ctx, err)
		return report.String(), err
	}
	s.recordAuditSuccess(ctx)
	return report.String(), nil
}

func (s *Server) recordAuditSuccess(ctx context.Context) {
	if _, err := s.store.RecordAudit(ctx, store.AuditRecord{Status: "ok"}); err != nil {
		s.log.Warn().Err(err).Msg("failed to record audit outcome")
	}
}

func (s *Server) recordAuditFailure(ctx context.Context, auditErr error) {
	rec := store.AuditRecord{Status: "violation", Detail: auditErr.Error()}
	var cerr *mergecheck.ConsistencyError
	if errors.As(auditErr, &cerr) {
		rec.Kind = cerr.Kind
		rec.FullName = cerr.FullName
	}
	if _, err := s.store.RecordAudit(ctx, rec); err != nil {
		s.log.Warn().Err(err).Msg("failed to record audit outcome")
	}
}

func (s *Server) setIndexStatus(status IndexStatus, err error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.indexStatus = status
	s.indexErr = err
	if status == IndexStatusReady || status == IndexStatusFailed {
		select {
		case <-s.indexReady:
		default:
			close(s.indexReady)
		}
	}
}

// GetIndexStatus returns the current status, last error, and last duration.
func (s *Server) GetIndexStatus() (IndexStatus, error, time.Duration) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	return s.indexStatus, s.indexErr, s.indexDuration
}

// WaitForIndex blocks until the current indexing pass finishes or ctx expires.
func (s *Server) WaitForIndex(ctx context.Context) error {
	s.indexMu.RLock()
	ready := s.indexReady
	s.indexMu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
