package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/raido/internal/imagepipe"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/testutil"
	"github.com/starford/raido/internal/todoservice"
)

func testTools(t *testing.T) (*tools, *todoservice.Service) {
	t.Helper()

	items := testutil.TestStore(t)
	_, blobs := testutil.TestBlobs(t)
	pipe := imagepipe.New(blobs, imagepipe.DefaultPolicy())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := todoservice.New(items, blobs, pipe, logger)
	return &tools{svc: svc}, svc
}

// callTool dispatches through the same wrapper the registry applies, so
// handler errors show up as IsError results like they would on the wire.
func callTool(t *testing.T, tl *tools, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
	switch name {
	case "list_todos":
		handler = tl.listTodos
	case "get_todo":
		handler = tl.getTodo
	case "create_todo":
		handler = tl.createTodo
	case "update_todo":
		handler = tl.updateTodo
	case "delete_todo":
		handler = tl.deleteTodo
	case "get_todo_image":
		handler = tl.getTodoImage
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	result, err := wrap(handler)(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndGetTodoTool(t *testing.T) {
	tl, _ := testTools(t)

	r := callTool(t, tl, "create_todo", map[string]interface{}{
		"description": "Walk the dog",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	var created models.Item
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatalf("create result not JSON: %v", err)
	}
	if created.Description != "Walk the dog" || created.ID == "" {
		t.Errorf("created = %+v", created)
	}

	r = callTool(t, tl, "get_todo", map[string]interface{}{"id": created.ID})
	if r.IsError {
		t.Fatalf("get failed: %s", resultText(r))
	}
	var got models.Item
	_ = json.Unmarshal([]byte(resultText(r)), &got)
	if got.ID != created.ID || got.Description != created.Description {
		t.Errorf("got = %+v, want %+v", got, created)
	}
}

func TestGetTodoMissingIsToolError(t *testing.T) {
	tl, _ := testTools(t)

	r := callTool(t, tl, "get_todo", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error result for missing todo")
	}
	if text := resultText(r); !strings.Contains(text, "nope") {
		t.Errorf("error text = %q, want item id mentioned", text)
	}
}

func TestListTodosTool(t *testing.T) {
	tl, svc := testTools(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "one", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, "two", nil); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, tl, "list_todos", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("list failed: %s", resultText(r))
	}
	var items []models.Item
	if err := json.Unmarshal([]byte(resultText(r)), &items); err != nil {
		t.Fatalf("list result not JSON: %v", err)
	}
	if len(items) != 2 || items[0].Description != "one" {
		t.Errorf("items = %+v", items)
	}
}

func TestListTodosIncludesImagePreviews(t *testing.T) {
	tl, svc := testTools(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "with pic", []todoservice.ImageSource{
		{Data: testutil.JPEG(t, 50, 50), ContentType: "image/jpeg"},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, tl, "list_todos", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("list failed: %s", resultText(r))
	}
	var previews int
	for _, c := range r.Content {
		if img, ok := c.(mcp.ImageContent); ok {
			previews++
			if img.MIMEType != "image/jpeg" || img.Data == "" {
				t.Errorf("preview = %+v", img)
			}
		}
	}
	if previews != 1 {
		t.Errorf("previews = %d, want 1", previews)
	}
}

func TestUpdateTodoTool(t *testing.T) {
	tl, svc := testTools(t)

	item, err := svc.Create(context.Background(), "original", nil)
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, tl, "update_todo", map[string]interface{}{
		"id":        item.ID,
		"completed": true,
	})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	var updated models.Item
	_ = json.Unmarshal([]byte(resultText(r)), &updated)
	if !updated.Completed || updated.Description != "original" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestDeleteTodoTool(t *testing.T) {
	tl, svc := testTools(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, "doomed", []todoservice.ImageSource{
		{Data: testutil.JPEG(t, 50, 50), ContentType: "image/jpeg"},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, tl, "delete_todo", map[string]interface{}{"id": item.ID})
	if r.IsError {
		t.Fatalf("delete failed: %s", resultText(r))
	}
	var resp struct {
		ID            string   `json:"id"`
		DeletedImages []string `json:"deletedImages"`
	}
	_ = json.Unmarshal([]byte(resultText(r)), &resp)
	if resp.ID != item.ID || len(resp.DeletedImages) != 1 {
		t.Errorf("resp = %+v", resp)
	}

	r = callTool(t, tl, "get_todo", map[string]interface{}{"id": item.ID})
	if !r.IsError {
		t.Error("deleted todo still readable")
	}
}

func TestGetTodoImageTool(t *testing.T) {
	tl, svc := testTools(t)

	item, err := svc.Create(context.Background(), "owner", []todoservice.ImageSource{
		{Data: testutil.JPEG(t, 50, 50), ContentType: "image/jpeg"},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, tl, "get_todo_image", map[string]interface{}{"imageId": item.Images[0]})
	if r.IsError {
		t.Fatalf("get image failed: %s", resultText(r))
	}
	if len(r.Content) != 2 {
		t.Fatalf("content = %d parts, want text + image", len(r.Content))
	}
	meta := resultText(r)
	if !strings.Contains(meta, item.ID) || !strings.Contains(meta, item.Images[0]) {
		t.Errorf("meta = %q, want owner and image id", meta)
	}
	img, ok := r.Content[1].(mcp.ImageContent)
	if !ok {
		t.Fatalf("second part = %T, want ImageContent", r.Content[1])
	}
	if img.MIMEType != "image/jpeg" || img.Data == "" {
		t.Errorf("image = %+v", img)
	}
}

func TestCreateTodoRejectsBadImageURLsArgument(t *testing.T) {
	tl, _ := testTools(t)

	r := callTool(t, tl, "create_todo", map[string]interface{}{
		"description": "x",
		"imageUrls":   "not-an-array",
	})
	if !r.IsError {
		t.Error("expected error for non-array imageUrls")
	}
}

func TestCreateTodoMissingDescription(t *testing.T) {
	tl, _ := testTools(t)

	r := callTool(t, tl, "create_todo", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing description")
	}
}

func TestStringSlice(t *testing.T) {
	got, err := stringSlice(map[string]any{"k": []any{"a", "b"}}, "k")
	if err != nil || len(got) != 2 || got[0] != "a" {
		t.Errorf("got %v, %v", got, err)
	}

	if got, err := stringSlice(map[string]any{}, "k"); err != nil || got != nil {
		t.Errorf("absent key: got %v, %v", got, err)
	}

	if _, err := stringSlice(map[string]any{"k": []any{"a", 1}}, "k"); err == nil {
		t.Error("expected error for mixed types")
	}
}
