package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Conn frames JSON-RPC messages over a language server's stdio pipes using
// the LSP base protocol (Content-Length headers).
type Conn struct {
	r *bufio.Reader
	w io.Writer
}

func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: bufio.NewReader(r), w: w}
}

// ReadMessage reads one framed message body.
func (c *Conn) ReadMessage() ([]byte, error) {
	var contentLength int
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			// End of headers
			break
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) == 2 && parts[0] == "Content-Length" {
			contentLength, err = strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %v", err)
			}
		}
	}
	if contentLength == 0 {
		return nil, fmt.Errorf("missing or zero Content-Length")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, fmt.Errorf("failed to read body: %v", err)
	}
	return body, nil
}

// WriteMessage writes one framed message.
func (c *Conn) WriteMessage(msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %v", err)
	}
	if _, err := fmt.Fprintf(c.w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = c.w.Write(body)
	return err
}
