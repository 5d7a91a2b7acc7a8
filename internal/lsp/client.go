package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"symgraph/util"
)

// Client drives one language server over stdio. Requests are issued one at a
// time; server-initiated notifications are drained and dropped while waiting
// for a response.
type Client struct {
	cmd    *exec.Cmd
	conn   *Conn
	stdin  io.WriteCloser
	nextID int
	log    zerolog.Logger

	opened map[string]bool // URIs already sent via didOpen
}

// Start launches the language server binary and runs the initialize
// handshake for the given workspace root.
func Start(ctx context.Context, binaryPath, workspaceRoot string, log zerolog.Logger) (*Client, error) {
	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start language server %s: %w", binaryPath, err)
	}

	c := &Client{
		cmd:    cmd,
		conn:   NewConn(stdout, stdin),
		stdin:  stdin,
		log:    log,
		opened: make(map[string]bool),
	}

	var result InitializeResult
	err = c.call("initialize", InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   util.PathToURI(workspaceRoot),
	}, &result)
	if err != nil {
		c.kill()
		return nil, fmt.Errorf("initialize handshake: %w", err)
	}
	if err := c.notify("initialized", struct{}{}); err != nil {
		c.kill()
		return nil, err
	}
	log.Debug().Str("server", binaryPath).Bool("references", result.Capabilities.ReferencesProvider).
		Msg("language server ready")
	return c, nil
}

// Close shuts the server down gracefully, killing it if that fails.
func (c *Client) Close() error {
	var discard json.RawMessage
	if err := c.call("shutdown", nil, &discard); err != nil {
		c.kill()
		return err
	}
	if err := c.notify("exit", nil); err != nil {
		c.kill()
		return err
	}
	c.stdin.Close()
	return c.cmd.Wait()
}

func (c *Client) kill() {
	c.stdin.Close()
	_ = c.cmd.Process.Kill()
	_ = c.cmd.Wait()
}

// OpenFile announces a document to the server. Repeated opens are no-ops.
func (c *Client) OpenFile(path, languageID string) error {
	uri := util.PathToURI(path)
	if c.opened[uri] {
		return nil
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    1,
			Text:       string(text),
		},
	}); err != nil {
		return err
	}
	c.opened[uri] = true
	return nil
}

// References returns every location referencing the symbol at the given
// zero-based position.
func (c *Client) References(path string, line, character int) ([]Location, error) {
	var locations []Location
	err := c.call("textDocument/references", ReferenceParams{
		TextDocument: TextDocumentIdentifier{URI: util.PathToURI(path)},
		Position:     Position{Line: line, Character: character},
		Context:      ReferenceContext{IncludeDeclaration: false},
	}, &locations)
	return locations, err
}

func (c *Client) call(method string, params, result any) error {
	c.nextID++
	id := c.nextID
	if err := c.conn.WriteMessage(Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return err
	}
	for {
		body, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("%s: bad response: %w", method, err)
		}
		if resp.ID != id {
			// Server notification or stale response; drop it.
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: server error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	}
}

func (c *Client) notify(method string, params any) error {
	return c.conn.WriteMessage(Request{JSONRPC: "2.0", Method: method, Params: params})
}
