package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	ResolveRequests      atomic.Int64
	ShortLinkLookups     atomic.Int64
	BilibiliRequests     atomic.Int64
	BilibiliErrors       atomic.Int64
	WbiKeyRefreshes      atomic.Int64
	SubtitleHits         atomic.Int64
	SubtitleMisses       atomic.Int64
	AudioExtractions     atomic.Int64
	AudioExtractFailures atomic.Int64
	Transcriptions       atomic.Int64
	TranscriptionErrors  atomic.Int64
	LLMCalls             atomic.Int64
	LLMErrors            atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"resolve_requests":       metrics.ResolveRequests.Load(),
		"short_link_lookups":     metrics.ShortLinkLookups.Load(),
		"bilibili_requests":      metrics.BilibiliRequests.Load(),
		"bilibili_errors":        metrics.BilibiliErrors.Load(),
		"wbi_key_refreshes":      metrics.WbiKeyRefreshes.Load(),
		"subtitle_hits":          metrics.SubtitleHits.Load(),
		"subtitle_misses":        metrics.SubtitleMisses.Load(),
		"audio_extractions":      metrics.AudioExtractions.Load(),
		"audio_extract_failures": metrics.AudioExtractFailures.Load(),
		"transcriptions":         metrics.Transcriptions.Load(),
		"transcription_errors":   metrics.TranscriptionErrors.Load(),
		"llm_calls":              metrics.LLMCalls.Load(),
		"llm_errors":             metrics.LLMErrors.Load(),
		"cache_hits":             hits,
		"cache_misses":           misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"resolve_requests", "short_link_lookups",
		"bilibili_requests", "bilibili_errors", "wbi_key_refreshes",
		"subtitle_hits", "subtitle_misses",
		"audio_extractions", "audio_extract_failures",
		"transcriptions", "transcription_errors",
		"llm_calls", "llm_errors",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the bilibili/ sub-package.
func IncrResolveRequests()  { metrics.ResolveRequests.Add(1) }
func IncrShortLinkLookups() { metrics.ShortLinkLookups.Add(1) }
func IncrBilibiliRequests() { metrics.BilibiliRequests.Add(1) }
func IncrBilibiliErrors()   { metrics.BilibiliErrors.Add(1) }
func IncrWbiKeyRefreshes()  { metrics.WbiKeyRefreshes.Add(1) }
func IncrSubtitleHits()     { metrics.SubtitleHits.Add(1) }
func IncrSubtitleMisses()   { metrics.SubtitleMisses.Add(1) }

// Incrementors for the audio/ sub-package.
func IncrAudioExtractions()     { metrics.AudioExtractions.Add(1) }
func IncrAudioExtractFailures() { metrics.AudioExtractFailures.Add(1) }
func IncrTranscriptions()       { metrics.Transcriptions.Add(1) }
func IncrTranscriptionErrors()  { metrics.TranscriptionErrors.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
