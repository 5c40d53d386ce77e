package videoserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerHistory(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "bilibili_history",
		Description: "List recent bilibili_summary and bilibili_content runs, newest first: input, resolved video ID, title, content source, text length, and the miss reason for failed runs.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.history)
}

func (t *tools) history(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	entries, err := t.History.Recent(ctx, input.Limit)
	if err != nil {
		return nil, HistoryOutput{}, fmt.Errorf("history: %w", err)
	}
	out := HistoryOutput{Runs: make([]HistoryItem, 0, len(entries))}
	for _, e := range entries {
		out.Runs = append(out.Runs, historyItem(e))
	}
	return nil, out, nil
}
