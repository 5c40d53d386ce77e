package videoserver

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerContent(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "bilibili_content",
		Description: "Fetch the raw text of a Bilibili video without summarizing it: subtitles in the preferred language, or a speech transcript when the video has none, plus formatted top comments. Accepts the same inputs as bilibili_summary.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.content)
}

func (t *tools) content(ctx context.Context, _ *mcp.CallToolRequest, input VideoInput) (*mcp.CallToolResult, ContentOutput, error) {
	if strings.TrimSpace(input.Input) == "" {
		return nil, ContentOutput{}, errors.New("input is required")
	}

	out := ContentOutput{Input: input.Input}
	res, err := t.Pipeline.Content(ctx, input.Input)
	if err != nil {
		reason, ok := missReason(input.Input, err)
		if !ok {
			return nil, ContentOutput{}, err
		}
		out.Miss = reason
		return nil, out, nil
	}

	out.Video = &res.Video
	out.Text = res.Content.Text
	out.TextLength = res.Content.TextLength
	out.Source = string(res.Content.Source)
	out.Comments = res.Content.Comments
	out.Cached = res.Cached
	return nil, out, nil
}
