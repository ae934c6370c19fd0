package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// lineWriter serializes writes to stdout so a response and a concurrent
// streaming notification never interleave mid-line.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// ServeStdio runs the single-client stdio transport: one JSON-RPC request
// per line on in, one response per line on out. All logging goes through
// s.logger, which callers must configure to write to stderr, never stdout,
// so the line-delimited protocol stream stays uncontaminated.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	writer := &lineWriter{out: out}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var wg sync.WaitGroup
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			_ = writer.writeLine(&JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &JSONRPCError{Code: ErrCodeParseError, Message: fmt.Sprintf("parse error: %v", err)},
			})
			continue
		}

		wg.Add(1)
		go func(req JSONRPCRequest) {
			defer wg.Done()
			reqCtx := WithNotifier(ctx, func(method string, params json.RawMessage) {
				_ = writer.writeLine(&JSONRPCNotification{JSONRPC: "2.0", Method: method, Params: params})
			})
			resp := s.HandleRequest(reqCtx, &req)
			if err := writer.writeLine(resp); err != nil {
				s.logger.Error("failed to write stdio response", "error", err)
			}
		}(req)
	}
	wg.Wait()

	if err := scanner.Err(); err != nil {
		s.logger.Error("stdio scanner error", "error", err)
		return err
	}
	return nil
}

// NewStdioLogger builds the logger callers should pass to New when serving
// over stdio: stderr-only, so stdout stays reserved for protocol frames.
func NewStdioLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
