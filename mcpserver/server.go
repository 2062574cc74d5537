package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sey-media/clientwatch/internal/biz/repo"
)

// InspectServer exposes the audit log over MCP so an agent (or an operator's
// tooling) can ask what the watcher has been doing: which alerts fired, which
// batches were skipped, how tracked questions ended.
type InspectServer struct {
	server *mcp.Server
	audit  repo.AuditRepo
}

// NewServer creates the inspection server over an audit repository.
func NewServer(audit repo.AuditRepo) *InspectServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "clientwatch-inspect",
		Version: "v1.0.0",
	}, nil)

	s := &InspectServer{
		server: server,
		audit:  audit,
	}
	s.registerTools()
	return s
}

func (s *InspectServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recent_alerts",
		Description: "Get recently posted alerts: client fires, testimonials, and expired-question alerts, newest first.",
	}, s.handleRecentAlerts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "skipped_batches",
		Description: "Get message batches that were dropped because classification failed twice, newest first.",
	}, s.handleSkippedBatches)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "question_history",
		Description: "Get the terminal outcomes of tracked client questions (answered or expired), newest first.",
	}, s.handleQuestionHistory)
}

// RecentAlertsInput selects how many alerts to return
type RecentAlertsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of alerts to return (default 20)"`
}

// Alert is one posted alert
type Alert struct {
	Kind       string `json:"kind"`
	ChannelID  string `json:"channel_id"`
	ClientName string `json:"client_name,omitempty"`
	Content    string `json:"content"`
	PostedAt   string `json:"posted_at"`
}

// RecentAlertsOutput carries the alert list
type RecentAlertsOutput struct {
	Alerts []Alert `json:"alerts"`
	Error  string  `json:"error,omitempty"`
}

func (s *InspectServer) handleRecentAlerts(ctx context.Context, req *mcp.CallToolRequest, input RecentAlertsInput) (*mcp.CallToolResult, RecentAlertsOutput, error) {
	records, err := s.audit.RecentAlerts(ctx, input.Limit)
	if err != nil {
		return nil, RecentAlertsOutput{Error: err.Error()}, nil
	}

	out := RecentAlertsOutput{Alerts: make([]Alert, 0, len(records))}
	for _, r := range records {
		out.Alerts = append(out.Alerts, Alert{
			Kind:       r.Kind,
			ChannelID:  r.ChannelID,
			ClientName: r.ClientName,
			Content:    r.Content,
			PostedAt:   r.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// SkippedBatchesInput selects how many records to return
type SkippedBatchesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of records to return (default 20)"`
}

// SkippedBatch is one dropped batch
type SkippedBatch struct {
	ChannelID    string `json:"channel_id"`
	Reason       string `json:"reason,omitempty"`
	MessageCount int    `json:"message_count"`
	SkippedAt    string `json:"skipped_at"`
}

// SkippedBatchesOutput carries the skipped batch list
type SkippedBatchesOutput struct {
	Batches []SkippedBatch `json:"batches"`
	Error   string         `json:"error,omitempty"`
}

func (s *InspectServer) handleSkippedBatches(ctx context.Context, req *mcp.CallToolRequest, input SkippedBatchesInput) (*mcp.CallToolResult, SkippedBatchesOutput, error) {
	records, err := s.audit.SkippedBatches(ctx, input.Limit)
	if err != nil {
		return nil, SkippedBatchesOutput{Error: err.Error()}, nil
	}

	out := SkippedBatchesOutput{Batches: make([]SkippedBatch, 0, len(records))}
	for _, r := range records {
		out.Batches = append(out.Batches, SkippedBatch{
			ChannelID:    r.ChannelID,
			Reason:       r.Reason,
			MessageCount: r.MessageCount,
			SkippedAt:    r.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// QuestionHistoryInput selects how many outcomes to return
type QuestionHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of outcomes to return (default 20)"`
}

// QuestionOutcome is one finished question
type QuestionOutcome struct {
	QuestionID string `json:"question_id"`
	ChannelID  string `json:"channel_id"`
	Text       string `json:"text"`
	Status     string `json:"status"`
	RecordedAt string `json:"recorded_at"`
}

// QuestionHistoryOutput carries the outcome list
type QuestionHistoryOutput struct {
	Questions []QuestionOutcome `json:"questions"`
	Error     string            `json:"error,omitempty"`
}

func (s *InspectServer) handleQuestionHistory(ctx context.Context, req *mcp.CallToolRequest, input QuestionHistoryInput) (*mcp.CallToolResult, QuestionHistoryOutput, error) {
	records, err := s.audit.QuestionHistory(ctx, input.Limit)
	if err != nil {
		return nil, QuestionHistoryOutput{Error: err.Error()}, nil
	}

	out := QuestionHistoryOutput{Questions: make([]QuestionOutcome, 0, len(records))}
	for _, r := range records {
		out.Questions = append(out.Questions, QuestionOutcome{
			QuestionID: r.QuestionID,
			ChannelID:  r.ChannelID,
			Text:       r.Text,
			Status:     r.Status,
			RecordedAt: r.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// Run starts the MCP server with stdio transport
func (s *InspectServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
