package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "summary text", "summary text"},
		{"fenced", "```\nsummary\n```", "summary"},
		{"markdown fence", "```markdown\n# Title\n```", "# Title"},
		{"whitespace", "  \n summary \n ", "summary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.raw); got != tt.want {
				t.Errorf("stripFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSummaryPrompt(t *testing.T) {
	t.Run("all sections", func(t *testing.T) {
		p := BuildSummaryPrompt(SummaryInput{
			Title:       "Go 并发",
			Description: "channel 与 goroutine",
			Text:        "大家好 今天讲并发",
			Comments:    "alice: 讲得好",
		})
		assert.Contains(t, p, "视频标题：Go 并发")
		assert.Contains(t, p, "视频简介：channel 与 goroutine")
		assert.Contains(t, p, "视频字幕：\n大家好 今天讲并发")
		assert.Contains(t, p, "热门评论：\nalice: 讲得好")
	})

	t.Run("transcript label and optional sections omitted", func(t *testing.T) {
		p := BuildSummaryPrompt(SummaryInput{Title: "t", Text: "x", Transcribed: true})
		assert.Contains(t, p, "视频语音转写：\nx")
		assert.NotContains(t, p, "视频简介")
		assert.NotContains(t, p, "热门评论")
	})
}

func TestVideoSummarizer(t *testing.T) {
	ctx := context.Background()

	t.Run("passes system prompt and strips fences", func(t *testing.T) {
		var gotSystem, gotPrompt string
		s := NewVideoSummarizerFunc(func(_ context.Context, system, prompt string) (string, error) {
			gotSystem, gotPrompt = system, prompt
			return "```\n要点一\n```", nil
		}, "")
		out, err := s.Summarize(ctx, SummaryInput{Title: "标题", Text: "内容"})
		require.NoError(t, err)
		assert.Equal(t, "要点一", out)
		assert.Equal(t, DefaultSummaryPrompt, gotSystem)
		assert.True(t, strings.Contains(gotPrompt, "标题"))
	})

	t.Run("empty completion is an error", func(t *testing.T) {
		s := NewVideoSummarizerFunc(func(context.Context, string, string) (string, error) {
			return "   ", nil
		}, "custom")
		_, err := s.Summarize(ctx, SummaryInput{Title: "t", Text: "x"})
		assert.Error(t, err)
	})

	t.Run("client error wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		s := NewVideoSummarizerFunc(func(context.Context, string, string) (string, error) {
			return "", boom
		}, "custom")
		_, err := s.Summarize(ctx, SummaryInput{Title: "t", Text: "x"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nil summarizer disabled", func(t *testing.T) {
		var s *VideoSummarizer
		_, err := s.Summarize(ctx, SummaryInput{})
		assert.ErrorIs(t, err, ErrLLMDisabled)
	})

	t.Run("no client configured", func(t *testing.T) {
		assert.Nil(t, NewVideoSummarizer(&Config{}))
	})
}

func TestTranscriptionKeyFallback(t *testing.T) {
	c := Config{LLMAPIKey: "llm-key"}
	assert.Equal(t, "llm-key", c.TranscriptionKey())
	c.WhisperAPIKey = "whisper-key"
	assert.Equal(t, "whisper-key", c.TranscriptionKey())
}
