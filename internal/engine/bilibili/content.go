package bilibili

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
	"github.com/anatolykoptev/go_bilisum/internal/engine/audio"
)

// Terminal misses of the audio fallback path.
var (
	ErrTranscriptionDisabled = errors.New("no subtitle and audio transcription disabled")
	ErrAudioFailed           = errors.New("audio extraction failed")
	ErrTranscriptionFailed   = errors.New("speech transcription failed")
)

const (
	defaultRetryBackoff = 2 * time.Second
	audioAttempts       = 2
)

// Source tells where ContentResult.Text came from.
type Source string

const (
	SourceSubtitle   Source = "subtitle"
	SourceTranscript Source = "transcript"
)

// ContentResult is the text handed to the summarizer.
type ContentResult struct {
	Text       string `json:"text"`
	TextLength int    `json:"text_length"`
	Source     Source `json:"source"`
	Comments   string `json:"comments,omitempty"`
}

// VideoAPI is the subset of Client the content chain needs.
type VideoAPI interface {
	FetchSubtitle(ctx context.Context, aid, cid int64, lang string, maxChars int) (string, error)
	StreamURL(ctx context.Context, aid, cid int64) (string, error)
	Comments(ctx context.Context, aid int64, limit int) ([]Comment, error)
}

// Extractor turns a stream URL into a local audio artifact.
type Extractor interface {
	Extract(ctx context.Context, streamURL string, maxDuration time.Duration) (audio.Artifact, error)
}

// Transcriber turns an artifact into text and removes it.
type Transcriber interface {
	Transcribe(ctx context.Context, a audio.Artifact) (string, error)
}

// ContentOptions tunes the fallback chain.
type ContentOptions struct {
	SubtitleLanguage     string
	MaxSubtitleChars     int
	TranscriptionEnabled bool
	MaxAudioDuration     time.Duration // 0 = whole stream
	CommentLimit         int
	CommentMaxChars      int
	RetryBackoff         time.Duration // pause between the two audio attempts
}

// ContentOptionsFromConfig maps engine config onto ContentOptions.
func ContentOptionsFromConfig(c *engine.Config) ContentOptions {
	return ContentOptions{
		SubtitleLanguage:     c.SubtitleLanguage,
		MaxSubtitleChars:     c.MaxSubtitleChars,
		TranscriptionEnabled: c.AudioTranscription,
		MaxAudioDuration:     c.AudioMaxDuration,
		CommentLimit:         c.CommentLimit,
		CommentMaxChars:      c.CommentMaxChars,
	}
}

// ContentFetcher runs subtitle → stream locator → audio → transcript, then
// fetches comments.
type ContentFetcher struct {
	api         VideoAPI
	extractor   Extractor
	transcriber Transcriber
	opts        ContentOptions
}

// NewContentFetcher wires the chain. extractor and transcriber may be nil
// when transcription is disabled.
func NewContentFetcher(api VideoAPI, extractor Extractor, transcriber Transcriber, opts ContentOptions) *ContentFetcher {
	if opts.SubtitleLanguage == "" {
		opts.SubtitleLanguage = DefaultSubtitleLanguage
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if extractor == nil || transcriber == nil {
		opts.TranscriptionEnabled = false
	}
	return &ContentFetcher{api: api, extractor: extractor, transcriber: transcriber, opts: opts}
}

// Fetch returns subtitle or transcript text plus formatted comments for m.
func (f *ContentFetcher) Fetch(ctx context.Context, m VideoMetadata) (*ContentResult, error) {
	res := &ContentResult{Source: SourceSubtitle}

	text, err := f.api.FetchSubtitle(ctx, m.AID, m.CID, f.opts.SubtitleLanguage, f.opts.MaxSubtitleChars)
	switch {
	case err == nil:
		engine.IncrSubtitleHits()
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case !f.opts.TranscriptionEnabled:
		engine.IncrSubtitleMisses()
		slog.Info("content: no subtitle, transcription disabled", slog.Int64("aid", m.AID))
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionDisabled, err)
	default:
		engine.IncrSubtitleMisses()
		slog.Info("content: no subtitle, falling back to audio", slog.Int64("aid", m.AID))
		text, err = f.transcribe(ctx, m)
		if err != nil {
			return nil, err
		}
		res.Source = SourceTranscript
	}

	res.Text = text
	res.TextLength = len([]rune(text))
	res.Comments = f.comments(ctx, m.AID)
	return res, nil
}

// transcribe runs the audio path. The locator is short-lived, so each
// attempt fetches a fresh one before extracting.
func (f *ContentFetcher) transcribe(ctx context.Context, m VideoMetadata) (string, error) {
	attempt := 0
	art, err := backoff.Retry(ctx, func() (audio.Artifact, error) {
		attempt++
		streamURL, err := f.api.StreamURL(ctx, m.AID, m.CID)
		if err != nil {
			return audio.Artifact{}, err
		}
		a, err := f.extractor.Extract(ctx, streamURL, f.opts.MaxAudioDuration)
		if errors.Is(err, audio.ErrDecoderNotFound) {
			return audio.Artifact{}, backoff.Permanent(err)
		}
		return a, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(f.opts.RetryBackoff)),
		backoff.WithMaxTries(audioAttempts),
		backoff.WithMaxElapsedTime(30*time.Minute),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Warn("content: audio attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
				slog.Any("error", err))
		}),
	)
	if err != nil {
		slog.Error("content: audio path exhausted", slog.Int64("aid", m.AID), slog.Int("attempts", attempt), slog.Any("error", err))
		return "", fmt.Errorf("%w: %w", ErrAudioFailed, err)
	}

	text, err := f.transcriber.Transcribe(ctx, art)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	slog.Info("content: transcript ready", slog.Int64("aid", m.AID), slog.Int("chars", len([]rune(text))))
	return text, nil
}

// comments never fails the run; a miss yields "".
func (f *ContentFetcher) comments(ctx context.Context, aid int64) string {
	cms, err := f.api.Comments(ctx, aid, f.opts.CommentLimit)
	if err != nil {
		return ""
	}
	return FormatComments(cms, f.opts.CommentMaxChars)
}
