package bilibili

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
	"github.com/anatolykoptev/go_bilisum/internal/engine/audio"
	"github.com/anatolykoptev/go_bilisum/internal/engine/history"
	"github.com/anatolykoptev/go_bilisum/internal/toolutil"
)

// slowContentThreshold flags content fetches that fell through to transcription
// of a long stream.
const slowContentThreshold = 2 * time.Minute

// Summarizer turns video content into prose.
type Summarizer interface {
	Summarize(ctx context.Context, in engine.SummaryInput) (string, error)
}

// Recorder stores the outcome of each run.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Result is the outcome of a successful run.
type Result struct {
	Video   VideoMetadata `json:"video"`
	Content ContentResult `json:"content"`
	Summary string        `json:"summary,omitempty"`
	Cached  bool          `json:"cached,omitempty"`
}

// MissError is the only error Pipeline returns. Reason is safe to show to
// end users; Err keeps the underlying cause for errors.Is.
type MissError struct {
	Stage  string
	Err    error
	reason string
}

func (e *MissError) Error() string  { return e.Stage + ": " + e.reason + ": " + e.Err.Error() }
func (e *MissError) Unwrap() error  { return e.Err }
func (e *MissError) Reason() string { return e.reason }

// NewMissError builds a miss for stage with a user-facing reason.
func NewMissError(stage, reason string, err error) *MissError {
	return &MissError{Stage: stage, Err: err, reason: reason}
}

// Pipeline resolves a reference and gathers its content, optionally summarizing it.
type Pipeline struct {
	client     *Client
	content    *ContentFetcher
	summarizer Summarizer
	recorder   Recorder
}

// NewPipeline wires the stages. summarizer and recorder may be nil.
func NewPipeline(client *Client, content *ContentFetcher, summarizer Summarizer, recorder Recorder) *Pipeline {
	return &Pipeline{client: client, content: content, summarizer: summarizer, recorder: recorder}
}

// Run resolves input, fetches content and summarizes it.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	return p.run(ctx, input, true)
}

// Content resolves input and fetches content without summarizing.
func (p *Pipeline) Content(ctx context.Context, input string) (*Result, error) {
	return p.run(ctx, input, false)
}

func (p *Pipeline) run(ctx context.Context, input string, summarize bool) (res *Result, err error) {
	entry := history.Entry{Input: input}
	defer func() {
		p.record(ctx, entry, res, err)
	}()

	candidate, ok := ExtractCandidate(input)
	if !ok {
		return nil, NewMissError("resolve", "未找到bilibili视频链接或ID", ErrNoVideo)
	}
	id, rerr := p.client.Resolve(ctx, candidate)
	if rerr != nil {
		return nil, NewMissError("resolve", "无法识别的视频链接或ID格式，请检查后重试", rerr)
	}
	entry.VideoID = id.String()

	if summarize && !p.canSummarize() {
		return nil, NewMissError("summarize", "未配置LLM API密钥，无法生成总结", engine.ErrLLMDisabled)
	}

	cacheKey := engine.CacheKey("bilibili", id.String(), boolKey(summarize))
	if cached, ok := loadResult(ctx, cacheKey); ok {
		slog.Debug("pipeline: cache hit", slog.String("video", id.String()))
		return cached, nil
	}

	meta, merr := p.client.FetchMetadata(ctx, id)
	if merr != nil {
		return nil, NewMissError("metadata", "获取视频信息失败，请检查BV号是否正确", merr)
	}
	if meta.BVID == "" && meta.AID > 0 {
		if bvid, ok := p.client.ConvertAVToBV(ctx, meta.AID); ok {
			meta.BVID = bvid
		}
	}
	if meta.BVID != "" {
		entry.VideoID = meta.BVID
	}

	var content *ContentResult
	cerr := engine.TrackOperation(ctx, "bilibili.content", slowContentThreshold, func(ctx context.Context) error {
		var err error
		content, err = p.content.Fetch(ctx, meta)
		return err
	})
	if cerr != nil {
		return nil, contentMiss(ctx, cerr)
	}
	res = &Result{Video: meta, Content: *content}

	if summarize {
		summary, serr := p.summarizer.Summarize(ctx, engine.SummaryInput{
			Title:       meta.Title,
			Description: meta.Description,
			Text:        content.Text,
			Transcribed: content.Source == SourceTranscript,
			Comments:    content.Comments,
		})
		if serr != nil {
			slog.Error("pipeline: summary failed", slog.String("video", id.String()), slog.Any("error", serr))
			return nil, NewMissError("summarize", "生成总结失败", serr)
		}
		res.Summary = summary
	}

	storeResult(ctx, cacheKey, res)
	return res, nil
}

func (p *Pipeline) canSummarize() bool {
	if p.summarizer == nil {
		return false
	}
	if vs, ok := p.summarizer.(*engine.VideoSummarizer); ok && vs == nil {
		return false
	}
	return true
}

// contentMiss maps a content-chain failure onto a user-facing reason.
func contentMiss(ctx context.Context, err error) *MissError {
	switch {
	case ctx.Err() != nil:
		return NewMissError("content", "请求已取消", err)
	case errors.Is(err, ErrTranscriptionDisabled):
		return NewMissError("content", "未找到可用的字幕，且音频转文字功能未启用", err)
	case errors.Is(err, audio.ErrDecoderNotFound):
		return NewMissError("audio", "音频提取失败，请检查是否安装了ffmpeg", err)
	case errors.Is(err, ErrAudioFailed) && errors.Is(err, ErrNoStream):
		return NewMissError("audio", "无法获取视频下载地址", err)
	case errors.Is(err, ErrAudioFailed):
		return NewMissError("audio", "音频提取失败", err)
	case errors.Is(err, ErrTranscriptionFailed):
		return NewMissError("transcribe", "语音识别失败，请检查Whisper API配置", err)
	}
	return NewMissError("content", "获取视频内容失败", err)
}

func (p *Pipeline) record(ctx context.Context, e history.Entry, res *Result, err error) {
	if p.recorder == nil {
		return
	}
	if res != nil {
		e.Title = res.Video.Title
		e.Source = string(res.Content.Source)
		e.TextLength = res.Content.TextLength
		e.Summarized = res.Summary != ""
	}
	var me *MissError
	if errors.As(err, &me) {
		e.Miss = me.Reason()
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if rerr := p.recorder.Record(recCtx, e); rerr != nil {
		slog.Warn("pipeline: history record failed", slog.Any("error", rerr))
	}
}

func boolKey(b bool) string {
	if b {
		return "summary"
	}
	return "content"
}

func loadResult(ctx context.Context, key string) (*Result, bool) {
	r, ok := toolutil.CacheLoadJSON[Result](ctx, key)
	if !ok {
		return nil, false
	}
	r.Cached = true
	return &r, true
}

func storeResult(ctx context.Context, key string, r *Result) {
	toolutil.CacheStoreJSON(ctx, key, *r)
}
