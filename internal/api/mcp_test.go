package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"adoptiq/internal/answer"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestMCPTool_AskData(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpAskData(deps)

	req := makeCallToolRequest("ask_data", map[string]interface{}{
		"question":  "Show me all products",
		"user_id":   "u1",
		"user_role": "ADMIN",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var resp answer.Response
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.Contains(resp.Answer, "Cisco Duo") {
		t.Fatalf("answer missing result: %q", resp.Answer)
	}
}

func TestMCPTool_AskData_MissingArgs(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpAskData(deps)

	req := makeCallToolRequest("ask_data", map[string]interface{}{
		"question": "Show me all products",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when user_id is missing")
	}
}

func TestMCPTool_AskData_ValidationError(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpAskData(deps)

	req := makeCallToolRequest("ask_data", map[string]interface{}{
		"question":  "Show me all products",
		"user_id":   "u1",
		"user_role": "WIZARD",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for an invalid role")
	}
}

func TestMCPTool_ListTemplates(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpListTemplates(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_question_templates", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var templates []templateInfo
	if err := json.Unmarshal([]byte(toolText(t, result)), &templates); err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}
	if len(templates) == 0 {
		t.Fatal("expected at least one template")
	}
}

func TestMCPResource_Templates(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpResourceTemplates(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("adoptiq://templates"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if !strings.Contains(tc.Text, "list_products") {
		t.Fatalf("templates resource missing list_products: %q", tc.Text)
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps := newTestDeps(t)

	// Answer a question so something lands in the audit trail.
	deps.Service.ProcessQuestion(context.Background(), answer.Request{
		Question: "Show me all products",
		UserID:   "u1",
		UserRole: "ADMIN",
	})

	handler := mcpResourceRecent(deps)
	var entries []json.RawMessage

	// Audit recording is asynchronous; poll briefly.
	for i := 0; i < 50; i++ {
		contents, err := handler(context.Background(), makeReadResourceRequest("adoptiq://recent"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tc := contents[0].(mcp.TextResourceContents)
		if err := json.Unmarshal([]byte(tc.Text), &entries); err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(entries) > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected at least one audit entry, got %d", len(entries))
}
