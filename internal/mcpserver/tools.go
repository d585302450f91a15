package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/raido/internal/todoservice"
)

// tools holds the tool handlers. Errors returned here are converted to
// tool-level error results by wrap.
type tools struct {
	svc *todoservice.Service
}

func (t *tools) listTodos(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := t.svc.List(ctx)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(items, "", "  ")

	content := []mcp.Content{mcp.NewTextContent(string(out))}
	for _, item := range items {
		for _, key := range item.Images {
			body, ct, imgErr := t.svc.ImageData(ctx, key)
			if imgErr != nil {
				// A dangling reference should not fail the whole list.
				continue
			}
			content = append(content, mcp.ImageContent{
				Type:     "image",
				Data:     base64.StdEncoding.EncodeToString(body),
				MIMEType: ct,
			})
		}
	}
	return &mcp.CallToolResult{Content: content}, nil
}

func (t *tools) getTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return nil, err
	}
	item, err := t.svc.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("todo %s: %w", id, err)
	}
	out, _ := json.MarshalIndent(item, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (t *tools) createTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := req.RequireString("description")
	if err != nil {
		return nil, err
	}
	urls, err := stringSlice(req.GetArguments(), "imageUrls")
	if err != nil {
		return nil, err
	}
	sources := make([]todoservice.ImageSource, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, todoservice.ImageSource{URL: u})
	}
	item, err := t.svc.Create(ctx, description, sources)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(item, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (t *tools) updateTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return nil, err
	}
	// Only the two mutable fields are read from the arguments; anything
	// else the caller sends is ignored.
	args := req.GetArguments()
	var description *string
	if v, ok := args["description"].(string); ok {
		description = &v
	}
	var completed *bool
	if v, ok := args["completed"].(bool); ok {
		completed = &v
	}
	item, err := t.svc.Update(ctx, id, description, completed)
	if err != nil {
		return nil, fmt.Errorf("todo %s: %w", id, err)
	}
	out, _ := json.MarshalIndent(item, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (t *tools) deleteTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return nil, err
	}
	removed, err := t.svc.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("todo %s: %w", id, err)
	}
	out, _ := json.Marshal(map[string]any{
		"id":            id,
		"deletedImages": nonNil(removed),
	})
	return mcp.NewToolResultText(string(out)), nil
}

func (t *tools) getTodoImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imageID, err := req.RequireString("imageId")
	if err != nil {
		return nil, err
	}
	detail, err := t.svc.GetImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imageID, err)
	}
	meta, _ := json.MarshalIndent(map[string]any{
		"imageId":     detail.Key,
		"contentType": detail.ContentType,
		"owner":       detail.Owner,
	}, "", "  ")
	return &mcp.CallToolResult{Content: []mcp.Content{
		mcp.NewTextContent(string(meta)),
		mcp.ImageContent{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(detail.Body),
			MIMEType: detail.ContentType,
		},
	}}, nil
}

// stringSlice reads an optional array-of-strings argument.
func stringSlice(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an array of strings", key)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must contain only strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
