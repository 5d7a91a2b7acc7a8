// Command symgraph maintains an incremental symbol graph of a source
// workspace and serves it over MCP stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"symgraph/internal/config"
	"symgraph/internal/downloader"
	"symgraph/internal/lsp"
	"symgraph/internal/server"
	"symgraph/internal/store"
	"symgraph/internal/watcher"
	"symgraph/util"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "symgraph",
	Short: "Incremental symbol graph indexer with merge-consistency auditing",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		// Logs go to stderr; stdout carries the MCP protocol in serve mode.
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().Level(level)

		// Anchor a default workspace at the enclosing git repository.
		if cfg.Workspace == "." {
			if root, err := util.FindGitRoot("."); err == nil {
				cfg.Workspace = root
				if cfg.DBPath == filepath.Join(".", ".symgraph", "index.db") {
					cfg.DBPath = filepath.Join(root, ".symgraph", "index.db")
				}
			}
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the symbol graph over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := buildServer(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if cfg.Watch.Enabled {
			w, err := watcher.New(cfg.Workspace, cfg.DebounceInterval(), func(paths []string) {
				if err := s.ReindexFiles(ctx, paths); err != nil {
					log.Error().Err(err).Msg("reindex after change failed")
				}
			}, log.Logger)
			if err != nil {
				return err
			}
			defer w.Close()
			go func() {
				if err := w.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Msg("watcher stopped")
				}
			}()
		}

		return s.Run(ctx)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run one indexing pass over the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := buildServer(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		start := time.Now()
		nodes, edges, err := s.Index(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d nodes and %d edges in %.2fs\n", nodes, edges, time.Since(start).Seconds())
		return nil
	},
}

var checkVerbose bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Index the workspace and verify the merged graph is consistent",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := buildServer(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if _, _, err := s.Index(ctx); err != nil {
			return err
		}

		report, err := s.CheckGraph(ctx, checkVerbose)
		if err != nil {
			if report != "" {
				fmt.Fprint(os.Stderr, report)
			}
			return fmt.Errorf("graph inconsistency: %w", err)
		}
		fmt.Println("Graph is consistent.")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the workspace and reindex on file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := buildServer(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if _, _, err := s.Index(ctx); err != nil {
			return err
		}

		w, err := watcher.New(cfg.Workspace, cfg.DebounceInterval(), func(paths []string) {
			if err := s.ReindexFiles(ctx, paths); err != nil {
				log.Error().Err(err).Msg("reindex after change failed")
			}
		}, log.Logger)
		if err != nil {
			return err
		}
		defer w.Close()

		err = w.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

// buildServer opens the store and optional LSP client and assembles the
// server. The returned cleanup closes everything.
func buildServer(ctx context.Context) (*server.Server, func(), error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	var lspClient *lsp.Client
	if cfg.LSP.Enabled {
		lspClient, err = startLSP(ctx)
		if err != nil {
			// Enrichment is best-effort; the index still works without edges.
			log.Warn().Err(err).Msg("language server unavailable, skipping reference enrichment")
		}
	}

	s := server.New(cfg, st, lspClient, log.Logger)
	cleanup := func() {
		if lspClient != nil {
			lspClient.Close()
		}
		st.Close()
	}
	return s, cleanup, nil
}

var lspLang string

func startLSP(ctx context.Context) (*lsp.Client, error) {
	dl, err := downloader.New()
	if err != nil {
		return nil, err
	}
	binaryPath, err := dl.EnsureServer(ctx, lspLang, cfg.LSP.ServerPaths[lspLang])
	if err != nil {
		return nil, err
	}
	return lsp.Start(ctx, binaryPath, cfg.Workspace, log.Logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "symgraph.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&lspLang, "lsp-lang", "go", "language server used for reference enrichment")
	checkCmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false, "dump offending nodes in the violation report")

	rootCmd.AddCommand(serveCmd, indexCmd, checkCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
