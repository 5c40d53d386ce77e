package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// ErrLLMDisabled is returned when no LLM client is configured.
var ErrLLMDisabled = errors.New("llm client not configured")

// maxDescriptionChars caps the video description sent to the LLM.
const maxDescriptionChars = 500

// SummaryInput is everything the summarizer sees about one video.
type SummaryInput struct {
	Title       string
	Description string
	Text        string // subtitle or transcript
	Transcribed bool   // Text came from speech recognition
	Comments    string
}

// CompleteFunc sends a system + user prompt pair and returns the completion.
type CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

// VideoSummarizer generates prose summaries through an OpenAI-compatible chat endpoint.
type VideoSummarizer struct {
	complete CompleteFunc
	system   string
}

// NewVideoSummarizer builds a summarizer from the engine config.
// Returns nil when no LLM client is configured.
func NewVideoSummarizer(c *Config) *VideoSummarizer {
	if c.LLMClient == nil {
		return nil
	}
	client := c.LLMClient
	temperature, maxTokens := c.LLMTemperature, c.LLMMaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return NewVideoSummarizerFunc(func(ctx context.Context, system, prompt string) (string, error) {
		return client.Complete(ctx, system, prompt,
			llm.WithChatTemperature(temperature),
			llm.WithChatMaxTokens(maxTokens),
		)
	}, c.SummaryPrompt)
}

// NewVideoSummarizerFunc wraps an arbitrary completion function.
func NewVideoSummarizerFunc(fn CompleteFunc, system string) *VideoSummarizer {
	if system == "" {
		system = DefaultSummaryPrompt
	}
	return &VideoSummarizer{complete: fn, system: system}
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// BuildSummaryPrompt formats the user prompt for one video.
func BuildSummaryPrompt(in SummaryInput) string {
	desc := ""
	if d := strings.TrimSpace(in.Description); d != "" {
		desc = fmt.Sprintf(summaryDescSection, TruncateAtWord(d, maxDescriptionChars))
	}
	label := "视频字幕"
	if in.Transcribed {
		label = "视频语音转写"
	}
	comments := ""
	if c := strings.TrimSpace(in.Comments); c != "" {
		comments = fmt.Sprintf(summaryCommentsSection, c)
	}
	return fmt.Sprintf(summaryUserPrompt, in.Title, desc, label, in.Text, comments)
}

// Summarize asks the LLM for a summary. An empty completion is an error.
func (s *VideoSummarizer) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	if s == nil || s.complete == nil {
		return "", ErrLLMDisabled
	}
	metrics.LLMCalls.Add(1)

	raw, err := s.complete(ctx, s.system, BuildSummaryPrompt(in))
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", fmt.Errorf("llm summary: %w", err)
	}
	out := stripFences(raw)
	if out == "" {
		metrics.LLMErrors.Add(1)
		return "", errors.New("llm summary: empty completion")
	}
	slog.Info("llm: summary generated", slog.Int("chars", len([]rune(out))))
	return out, nil
}
