package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	SummaryPrompt      string

	BilibiliSessdata string
	RequestInterval  time.Duration // fixed pause after every Bilibili-origin request
	MaxSubtitleChars int
	SubtitleLanguage string // substring matched against a track's lan_doc
	CommentLimit     int
	CommentMaxChars  int

	AudioTranscription bool
	AudioMaxDuration   time.Duration // 0 = whole stream
	FFmpegPath         string
	AudioTempDir       string
	WhisperAPIKey      string // falls back to LLMAPIKey when empty
	WhisperAPIURL      string
	WhisperModel       string
	AudioLanguage      string

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	DatabaseURL          string // postgres://… enables the Postgres history store
	HistoryDBPath        string // SQLite history store path otherwise

	HTTPClient *http.Client
	LLMClient  *llm.Client // nil = summaries disabled
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (bilibili, audio).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}

// TranscriptionKey returns the bearer token for the speech-to-text endpoint.
func (c *Config) TranscriptionKey() string {
	if c.WhisperAPIKey != "" {
		return c.WhisperAPIKey
	}
	return c.LLMAPIKey
}
