package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

const maxMessageBytes = 4 << 20 // 4 MB per JSON-RPC message

// transport is a streamable HTTP transport bound to exactly one inbound
// request. It carries one JSON-RPC exchange and responds either as
// plain JSON or as a single SSE event when the client prefers
// text/event-stream.
type transport struct {
	logger *slog.Logger

	mu      sync.Mutex
	started bool // response bytes have been written
	closed  bool
}

func newTransport(logger *slog.Logger) *transport {
	return &transport{logger: logger}
}

// serve reads the request body, dispatches it through handle, and
// writes the response. A dispatch panic before any response bytes are
// sent becomes a protocol-level internal error; after bytes have begun
// streaming it can only be logged, since converting it would require
// buffering the whole response.
func (t *transport) serve(w http.ResponseWriter, r *http.Request, handle func(context.Context, json.RawMessage) mcp.JSONRPCMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			if t.hasStarted() {
				t.logger.Error("mcp: dispatch failed after response start", slog.Any("panic", rec))
				return
			}
			t.writeRPCError(w, -32603, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes+1))
	if err != nil {
		t.writeRPCError(w, -32603, fmt.Sprintf("read request: %v", err))
		return
	}
	if len(body) > maxMessageBytes {
		t.writeRPCError(w, -32600, fmt.Sprintf("request body exceeds %d bytes", maxMessageBytes))
		return
	}

	resp := handle(r.Context(), body)
	if resp == nil {
		// Notification: nothing to stream back.
		t.markStarted()
		w.WriteHeader(http.StatusAccepted)
		return
	}

	out, err := json.Marshal(resp)
	if err != nil {
		t.writeRPCError(w, -32603, fmt.Sprintf("encode response: %v", err))
		return
	}

	if acceptsSSE(r) {
		t.writeSSE(w, out)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	t.markStarted()
	_, _ = w.Write(out)
}

// Close marks the transport closed. Closing twice is an error so
// double-teardown surfaces in the session log.
func (t *transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport already closed")
	}
	t.closed = true
	return nil
}

func (t *transport) markStarted() {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
}

func (t *transport) hasStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *transport) writeSSE(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	t.markStarted()
	_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (t *transport) writeRPCError(w http.ResponseWriter, code int, message string) {
	t.markStarted()
	writeRPCBody(w, http.StatusOK, code, message)
}

func acceptsSSE(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

type rpcErrorResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	Error   rpcErrorBody `json:"error"`
	ID      any          `json:"id"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeMethodNotAllowed answers GET/DELETE (and anything else that is
// not POST) on the protocol endpoint.
func writeMethodNotAllowed(w http.ResponseWriter) {
	writeRPCBody(w, http.StatusMethodNotAllowed, -32000, "Method not allowed")
}

func writeRPCBody(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(rpcErrorResponse{
		JSONRPC: "2.0",
		Error:   rpcErrorBody{Code: code, Message: message},
		ID:      nil,
	})
	_, _ = w.Write(body)
}
