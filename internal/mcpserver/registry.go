// Package mcpserver exposes the Raido tools over MCP (Model Context
// Protocol) on a streamable HTTP transport, with one server/transport
// pair per inbound request.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/todoservice"
)

// toolServer owns one MCP server instance for the lifetime of a
// session. Construction registers the full tool registry; no I/O.
type toolServer struct {
	mcp    *server.MCPServer
	closed atomic.Bool
}

func newToolServer(svc *todoservice.Service) *toolServer {
	t := &tools{svc: svc}

	s := server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List all todo items in creation order, with inline previews of their images."),
		mcp.WithTitleAnnotation("List todos"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), wrap(t.listTodos))

	s.AddTool(mcp.NewTool("get_todo",
		mcp.WithDescription("Read a single todo item by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithTitleAnnotation("Get todo"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), wrap(t.getTodo))

	s.AddTool(mcp.NewTool("create_todo",
		mcp.WithDescription("Create a todo item. Up to 6 image URLs may be attached; each is "+
			"fetched (100KB limit), resized to at most 640px, and stored in the canonical format."),
		mcp.WithString("description", mcp.Required(), mcp.Description("Item description text")),
		mcp.WithArray("imageUrls",
			mcp.Description("Optional list of 1-6 http(s) image URLs to attach"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithTitleAnnotation("Create todo"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	), wrap(t.createTodo))

	s.AddTool(mcp.NewTool("update_todo",
		mcp.WithDescription("Update a todo item's description and/or completed flag. "+
			"Images cannot be changed after creation."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithBoolean("completed", mcp.Description("New completed state")),
		mcp.WithTitleAnnotation("Update todo"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), wrap(t.updateTodo))

	s.AddTool(mcp.NewTool("delete_todo",
		mcp.WithDescription("Delete a todo item and every image it references."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithTitleAnnotation("Delete todo"),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), wrap(t.deleteTodo))

	s.AddTool(mcp.NewTool("get_todo_image",
		mcp.WithDescription("Fetch a stored image by id, together with the todo item that owns it."),
		mcp.WithString("imageId", mcp.Required(), mcp.Description("Image id")),
		mcp.WithTitleAnnotation("Get todo image"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), wrap(t.getTodoImage))

	return &toolServer{mcp: s}
}

// handle dispatches one raw JSON-RPC message.
func (t *toolServer) handle(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return t.mcp.HandleMessage(ctx, raw)
}

// Close marks the server closed. Closing twice is an error so teardown
// bugs surface in the session log.
func (t *toolServer) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return errors.New("tool server already closed")
	}
	return nil
}

// wrap converts a handler's returned error into a tool-level error
// result, so one failed tool call never aborts the whole session.
// Applied uniformly to every registered handler.
func wrap(h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return res, nil
	}
}
