package videoserver

import (
	"time"

	"github.com/anatolykoptev/go_bilisum/internal/engine/bilibili"
	"github.com/anatolykoptev/go_bilisum/internal/engine/history"
)

// VideoInput is the input of bilibili_summary and bilibili_content.
type VideoInput struct {
	Input string `json:"input" jsonschema:"Bilibili video URL, b23.tv short link, BV/av ID, or any text or JSON message card containing one"`
}

// SummaryOutput is the structured output of bilibili_summary.
type SummaryOutput struct {
	Input      string                  `json:"input"`
	Video      *bilibili.VideoMetadata `json:"video,omitempty"`
	Summary    string                  `json:"summary,omitempty"`
	Source     string                  `json:"source,omitempty"` // subtitle or transcript
	TextLength int                     `json:"text_length,omitempty"`
	Cached     bool                    `json:"cached,omitempty"`
	Miss       string                  `json:"miss,omitempty"`
}

// ContentOutput is the structured output of bilibili_content.
type ContentOutput struct {
	Input      string                  `json:"input"`
	Video      *bilibili.VideoMetadata `json:"video,omitempty"`
	Text       string                  `json:"text,omitempty"`
	TextLength int                     `json:"text_length,omitempty"`
	Source     string                  `json:"source,omitempty"`
	Comments   string                  `json:"comments,omitempty"`
	Cached     bool                    `json:"cached,omitempty"`
	Miss       string                  `json:"miss,omitempty"`
}

type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Number of most recent runs to return (default 20, max 200)"`
}

// HistoryItem is one recorded run.
type HistoryItem struct {
	ID         int64  `json:"id"`
	Input      string `json:"input"`
	VideoID    string `json:"video_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Source     string `json:"source,omitempty"`
	TextLength int    `json:"text_length"`
	Summarized bool   `json:"summarized"`
	Miss       string `json:"miss,omitempty"`
	CreatedAt  string `json:"created_at"` // RFC 3339
}

// HistoryOutput is the structured output of bilibili_history.
type HistoryOutput struct {
	Runs []HistoryItem `json:"runs"`
}

func historyItem(e history.Entry) HistoryItem {
	return HistoryItem{
		ID:         e.ID,
		Input:      e.Input,
		VideoID:    e.VideoID,
		Title:      e.Title,
		Source:     e.Source,
		TextLength: e.TextLength,
		Summarized: e.Summarized,
		Miss:       e.Miss,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
