package videoserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_bilisum/internal/toolutil"
)

func registerSummary(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "bilibili_summary",
		Description: "Summarize a Bilibili video. Accepts a video URL, b23.tv short link, BV or av ID, or free text / a JSON message card that contains one. Uses the video's subtitles, falling back to audio transcription when none exist, plus top comments. Returns the summary with video metadata; on failure returns a human-readable reason in 'miss'.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.summary)
}

func (t *tools) summary(ctx context.Context, _ *mcp.CallToolRequest, input VideoInput) (*mcp.CallToolResult, SummaryOutput, error) {
	if strings.TrimSpace(input.Input) == "" {
		return nil, SummaryOutput{}, errors.New("input is required")
	}
	if err := toolutil.Wait(ctx, t.Limiter); err != nil {
		return nil, SummaryOutput{}, fmt.Errorf("rate limited: %w", err)
	}

	out := SummaryOutput{Input: input.Input}
	res, err := t.Pipeline.Run(ctx, input.Input)
	if err != nil {
		reason, ok := missReason(input.Input, err)
		if !ok {
			return nil, SummaryOutput{}, err
		}
		out.Miss = reason
		return nil, out, nil
	}

	out.Video = &res.Video
	out.Summary = res.Summary
	out.Source = string(res.Content.Source)
	out.TextLength = res.Content.TextLength
	out.Cached = res.Cached
	return nil, out, nil
}
