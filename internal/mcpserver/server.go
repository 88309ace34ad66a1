// Package mcpserver exposes the planner as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ai-planner/internal/assistant"
)

// HandleTurnParams параметры для handle_turn
type HandleTurnParams struct {
	SessionID string `json:"session_id" mcp:"conversation session identifier"`
	Message   string `json:"message" mcp:"the user's message"`
	Now       string `json:"now,omitempty" mcp:"reference instant, RFC3339 (default: server time)"`
}

// GetHistoryParams параметры для get_history
type GetHistoryParams struct {
	SessionID string `json:"session_id" mcp:"conversation session identifier"`
	Limit     int    `json:"limit,omitempty" mcp:"return only the most recent N turns (default: all)"`
}

// ClassifyOnlyParams параметры для classify_only
type ClassifyOnlyParams struct {
	Message string `json:"message" mcp:"message to classify"`
	Now     string `json:"now,omitempty" mcp:"reference instant, RFC3339 (default: server time)"`
}

// SessionParams параметры для инструментов, работающих с одной сессией
type SessionParams struct {
	SessionID string `json:"session_id" mcp:"conversation session identifier"`
	Date      string `json:"date,omitempty" mcp:"day in YYYY-MM-DD (agenda only, default: today)"`
}

// CompleteTaskParams параметры для complete_task
type CompleteTaskParams struct {
	SessionID string `json:"session_id" mcp:"session that owns the task"`
	TaskID    string `json:"task_id" mcp:"id of the task to mark completed"`
}

// PlannerServer MCP сервер поверх assistant.Service
type PlannerServer struct {
	svc *assistant.Service
	loc *time.Location
	now func() time.Time
}

func NewPlannerServer(svc *assistant.Service, loc *time.Location) *PlannerServer {
	if loc == nil {
		loc = time.UTC
	}
	return &PlannerServer{svc: svc, loc: loc, now: time.Now}
}

// NewServer создает MCP сервер и регистрирует инструменты
func NewServer(p *PlannerServer, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ai-planner-mcp",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "handle_turn",
		Description: "Classifies a message as event, task, note or response, stores the turn and returns the reply",
	}, p.HandleTurn)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_history",
		Description: "Returns the conversation history of a session in chronological order",
	}, p.GetHistory)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_only",
		Description: "Classifies a message without reading or writing any history",
	}, p.ClassifyOnly)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "Lists open tasks of a session",
	}, p.ListTasks)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenda",
		Description: "Lists events and tasks of a session for one day",
	}, p.Agenda)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "complete_task",
		Description: "Marks a task as completed",
	}, p.CompleteTask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_stats",
		Description: "Returns statistics for a session",
	}, p.SessionStats)

	log.Printf("📋 Registered planner MCP tools: handle_turn, get_history, classify_only, list_tasks, agenda, complete_task, session_stats")
	return server
}

func (p *PlannerServer) HandleTurn(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[HandleTurnParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	now, err := p.reference(args.Now)
	if err != nil {
		return errorResult(err), nil
	}
	res, err := p.svc.HandleTurn(ctx, args.SessionID, args.Message, now)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (p *PlannerServer) GetHistory(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[GetHistoryParams]) (*mcp.CallToolResultFor[any], error) {
	entries, err := p.svc.History(ctx, params.Arguments.SessionID, params.Arguments.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	if entries == nil {
		entries = []assistant.HistoryEntry{}
	}
	return jsonResult(entries)
}

func (p *PlannerServer) ClassifyOnly(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ClassifyOnlyParams]) (*mcp.CallToolResultFor[any], error) {
	now, err := p.reference(params.Arguments.Now)
	if err != nil {
		return errorResult(err), nil
	}
	preview, err := p.svc.ClassifyOnly(ctx, params.Arguments.Message, now)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(preview)
}

func (p *PlannerServer) ListTasks(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	tasks, err := p.svc.Tasks(ctx, params.Arguments.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(assistant.FormatTasks(tasks)), nil
}

func (p *PlannerServer) Agenda(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	day := params.Arguments.Date
	if day == "" {
		day = p.now().In(p.loc).Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return errorResult(fmt.Errorf("date must be YYYY-MM-DD: %w", err)), nil
	}
	items, err := p.svc.Agenda(ctx, params.Arguments.SessionID, day)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(assistant.FormatAgenda(day, items)), nil
}

func (p *PlannerServer) CompleteTask(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[CompleteTaskParams]) (*mcp.CallToolResultFor[any], error) {
	task, err := p.svc.CompleteTask(ctx, params.Arguments.SessionID, params.Arguments.TaskID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (p *PlannerServer) SessionStats(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	stats, err := p.svc.Stats(ctx, params.Arguments.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := stats.ToJSON()
	if err != nil {
		return nil, err
	}
	return textResult(out), nil
}

func (p *PlannerServer) reference(raw string) (time.Time, error) {
	if raw == "" {
		return p.now().In(p.loc), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("now must be RFC3339: %w", err)
	}
	return t, nil
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResultFor[any], error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports the failure to the calling model as {kind, message}.
func errorResult(err error) *mcp.CallToolResultFor[any] {
	kind := string(assistant.KindOf(err))
	if kind == "" {
		kind = string(assistant.KindInput)
	}
	data, _ := json.Marshal(map[string]string{"kind": kind, "message": err.Error()})
	log.Printf("❌ MCP tool failed (%s): %v", kind, err)
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
