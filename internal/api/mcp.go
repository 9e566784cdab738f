package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"adoptiq/internal/answer"
)

// NewMCPServer exposes the question pipeline as MCP tools so agent
// clients can query adoption data conversationally.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"adoptiq",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("adoptiq answers natural-language questions about products, customers, tasks, and adoption progress."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_data",
			mcp.WithDescription("Ask a natural-language question about adoption data (products, customers, tasks, telemetry, adoption plans)."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("Identifier of the asking user"), mcp.Required()),
			mcp.WithString("user_role", mcp.Description("Role of the asking user: ADMIN, SME, CSS, USER, or VIEWER"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Optional conversation identifier for follow-up questions")),
		),
		mcpAskData(deps),
	)

	s.AddTool(
		mcp.NewTool("list_question_templates",
			mcp.WithDescription("List the built-in question templates with example phrasings."),
		),
		mcpListTemplates(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"adoptiq://templates",
			"Question Templates",
			mcp.WithResourceDescription("Supported question templates as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTemplates(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"adoptiq://recent",
			"Recent Questions",
			mcp.WithResourceDescription("The most recent answered questions"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAskData(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		role, err := req.RequireString("user_role")
		if err != nil {
			return mcpError("user_role is required"), nil
		}

		resp := deps.Service.ProcessQuestion(ctx, answer.Request{
			Question:       question,
			UserID:         userID,
			UserRole:       role,
			ConversationID: req.GetString("conversation_id", ""),
		})
		if resp.Error != "" {
			return mcpError(resp.Error), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListTemplates(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Matcher == nil {
			return mcpError("templates unavailable"), nil
		}
		b, err := json.Marshal(templateViews(deps))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal templates: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceTemplates(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Matcher == nil {
			return nil, fmt.Errorf("templates unavailable")
		}
		b, err := json.Marshal(templateViews(deps))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal templates: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Audit == nil {
			return nil, fmt.Errorf("audit log unavailable")
		}
		b, err := json.Marshal(deps.Audit.Recent(10))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recent questions: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func templateViews(deps Deps) []templateInfo {
	templates := deps.Matcher.Templates()
	out := make([]templateInfo, len(templates))
	for i, t := range templates {
		out[i] = templateInfo{
			ID:          t.ID,
			Description: t.Description,
			Category:    t.Category,
			Examples:    t.Examples,
		}
	}
	return out
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
