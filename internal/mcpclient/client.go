// Package mcpclient talks to the planner MCP server over stdio.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ai-planner/internal/assistant"
)

// ToolError is a failure reported by the server as an error result.
type ToolError struct {
	Tool    string
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Tool, e.Kind, e.Message)
}

var ErrNotConnected = errors.New("planner MCP session not connected")

// Client клиент для работы с planner MCP сервером
type Client struct {
	client  *mcp.Client
	session *mcp.ClientSession
}

func New() *Client {
	return &Client{}
}

// ServerPath returns PLANNER_MCP_SERVER_PATH or the default binary name.
func ServerPath() string {
	if p := os.Getenv("PLANNER_MCP_SERVER_PATH"); p != "" {
		return p
	}
	return "./planner-mcp-server"
}

// Connect запускает сервер как подпроцесс и подключается к нему через stdio
func (c *Client) Connect(ctx context.Context, serverPath string, env ...string) error {
	log.Printf("🔗 Connecting to planner MCP server %s", serverPath)

	c.client = mcp.NewClient(&mcp.Implementation{
		Name:    "ai-planner-client",
		Version: "1.0.0",
	}, nil)

	cmd := exec.CommandContext(ctx, serverPath)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stderr = os.Stderr

	session, err := c.client.Connect(ctx, mcp.NewCommandTransport(cmd))
	if err != nil {
		return fmt.Errorf("failed to connect to planner MCP server: %w", err)
	}
	c.session = session
	log.Printf("✅ Connected to planner MCP server")
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// HandleTurn отправляет сообщение в сессию и возвращает результат хода
func (c *Client) HandleTurn(ctx context.Context, sessionID, message, now string) (assistant.TurnResult, error) {
	var out assistant.TurnResult
	err := c.call(ctx, "handle_turn", map[string]any{
		"session_id": sessionID,
		"message":    message,
		"now":        now,
	}, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, sessionID string, limit int) ([]assistant.HistoryEntry, error) {
	var out []assistant.HistoryEntry
	err := c.call(ctx, "get_history", map[string]any{
		"session_id": sessionID,
		"limit":      limit,
	}, &out)
	return out, err
}

func (c *Client) ClassifyOnly(ctx context.Context, message, now string) (assistant.Preview, error) {
	var out assistant.Preview
	err := c.call(ctx, "classify_only", map[string]any{
		"message": message,
		"now":     now,
	}, &out)
	return out, err
}

// Tasks returns the server's text listing of open tasks.
func (c *Client) Tasks(ctx context.Context, sessionID string) (string, error) {
	var out string
	err := c.call(ctx, "list_tasks", map[string]any{"session_id": sessionID}, &out)
	return out, err
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any, out any) error {
	if c.session == nil {
		return ErrNotConnected
	}
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	return decodeResult(tool, result, out)
}

// decodeResult joins the text content of result and decodes it into out.
// A *string out receives the raw text.
func decodeResult(tool string, result *mcp.CallToolResultFor[any], out any) error {
	var b strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	text := b.String()

	if result.IsError {
		te := &ToolError{Tool: tool}
		if err := json.Unmarshal([]byte(text), te); err != nil || te.Kind == "" {
			te.Kind, te.Message = "unknown", text
		}
		return te
	}
	if s, ok := out.(*string); ok {
		*s = text
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%s: decode result: %w", tool, err)
	}
	return nil
}
