// go_bilisum: Bilibili video summary MCP server.
//
// Exposes bilibili_summary, bilibili_content and bilibili_history. A video
// reference (URL, b23.tv short link, BV/av ID, or a message containing one) is
// resolved to subtitles, or to a speech transcript of its audio when no
// subtitles exist, and summarized by an OpenAI-compatible LLM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
	"github.com/anatolykoptev/go_bilisum/internal/engine/audio"
	"github.com/anatolykoptev/go_bilisum/internal/engine/bilibili"
	"github.com/anatolykoptev/go_bilisum/internal/engine/history"
	"github.com/anatolykoptev/go_bilisum/internal/toolutil"
	"github.com/anatolykoptev/go_bilisum/internal/videoserver"
)

var version = "dev"

func main() {
	_ = godotenv.Load() // optional .env; real environment wins
	mcpPort := env.Str("MCP_PORT", "8892")

	initEngine()

	store, err := history.Open(context.Background(), engine.Cfg.DatabaseURL, engine.Cfg.HistoryDBPath)
	if err != nil {
		slog.Warn("history store init failed, runs will not be recorded", slog.Any("error", err))
	} else {
		defer store.Close()
	}

	deps := videoserver.Deps{
		Pipeline: newPipeline(store),
		Limiter:  toolutil.NewLimiter(env.Int("SUMMARY_RATE_PER_MIN", 10)),
	}
	if store != nil {
		deps.History = store
	}

	slog.Info("starting go_bilisum",
		slog.String("port", mcpPort),
		slog.Bool("llm", engine.Cfg.LLMClient != nil),
		slog.Bool("transcription", engine.Cfg.AudioTranscription),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_bilisum",
		Version: version,
	}, nil)

	n := videoserver.RegisterTools(server, deps)
	slog.Info("tools registered", slog.Int("count", n))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_bilisum",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 900 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() {
	c := engine.Config{
		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://api.openai.com/v1"),
		LLMModel:           env.Str("LLM_MODEL", "gpt-3.5-turbo"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 1000),
		SummaryPrompt:      env.Str("SUMMARY_PROMPT", ""),

		BilibiliSessdata: env.Str("BILIBILI_SESSDATA", ""),
		RequestInterval:  env.Duration("REQUEST_INTERVAL", 2*time.Second),
		MaxSubtitleChars: env.Int("MAX_SUBTITLE_CHARS", 8000),
		SubtitleLanguage: env.Str("SUBTITLE_LANGUAGE", bilibili.DefaultSubtitleLanguage),
		CommentLimit:     env.Int("COMMENT_LIMIT", 10),
		CommentMaxChars:  env.Int("COMMENT_MAX_CHARS", 200),

		AudioTranscription: envBool("AUDIO_TRANSCRIPTION", true),
		AudioMaxDuration:   env.Duration("AUDIO_MAX_DURATION", 300*time.Second),
		FFmpegPath:         env.Str("FFMPEG_PATH", "ffmpeg"),
		AudioTempDir:       env.Str("AUDIO_TEMP_DIR", ""),
		WhisperAPIKey:      env.Str("WHISPER_API_KEY", ""),
		WhisperAPIURL:      env.Str("WHISPER_API_URL", audio.DefaultWhisperURL),
		WhisperModel:       env.Str("WHISPER_MODEL", audio.DefaultWhisperModel),
		AudioLanguage:      env.Str("AUDIO_LANGUAGE", "zh"),

		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		HistoryDBPath:        env.Str("HISTORY_DB_PATH", history.DefaultSQLitePath()),

		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	if c.LLMAPIKey != "" {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		)
	} else {
		slog.Warn("LLM_API_KEY not set, bilibili_summary will report a miss")
	}
	if c.BilibiliSessdata == "" {
		slog.Warn("BILIBILI_SESSDATA not set, subtitles may be unavailable")
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 60*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}

// newPipeline wires client, fallback chain, summarizer and history recorder.
func newPipeline(store history.Store) *bilibili.Pipeline {
	cfg := engine.Cfg
	client := bilibili.NewClient(cfg)

	var (
		extractor   bilibili.Extractor
		transcriber bilibili.Transcriber
	)
	if cfg.AudioTranscription {
		extractor = audio.NewExtractor(cfg)
		transcriber = audio.NewTranscriber(cfg)
	}
	content := bilibili.NewContentFetcher(client, extractor, transcriber, bilibili.ContentOptionsFromConfig(cfg))

	var summarizer bilibili.Summarizer
	if vs := engine.NewVideoSummarizer(cfg); vs != nil {
		summarizer = vs
	}
	var recorder bilibili.Recorder
	if store != nil {
		recorder = store
	}
	return bilibili.NewPipeline(client, content, summarizer, recorder)
}

// envBool reads a boolean variable; unset or unparsable values yield def.
func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		slog.Warn("invalid boolean, using default", slog.String("key", key), slog.Bool("default", def))
		return def
	}
	return v
}
