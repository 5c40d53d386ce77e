package bilibili

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_bilisum/internal/engine/audio"
)

type fakeAPI struct {
	mu          sync.Mutex
	subtitle    string
	subtitleErr error
	streamCalls int
	streamErr   error
	comments    []Comment
	commentsErr error
}

func (f *fakeAPI) FetchSubtitle(context.Context, int64, int64, string, int) (string, error) {
	return f.subtitle, f.subtitleErr
}

func (f *fakeAPI) StreamURL(context.Context, int64, int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls++
	if f.streamErr != nil {
		return "", f.streamErr
	}
	return fmt.Sprintf("https://upos.example/stream-%d.m4s", f.streamCalls), nil
}

func (f *fakeAPI) Comments(context.Context, int64, int) ([]Comment, error) {
	return f.comments, f.commentsErr
}

type fakeExtractor struct {
	errs  []error // per attempt; nil entry = success
	urls  []string
	times []time.Time
}

func (f *fakeExtractor) Extract(_ context.Context, streamURL string, _ time.Duration) (audio.Artifact, error) {
	i := len(f.urls)
	f.urls = append(f.urls, streamURL)
	f.times = append(f.times, time.Now())
	if i < len(f.errs) && f.errs[i] != nil {
		return audio.Artifact{}, f.errs[i]
	}
	return audio.Artifact{Path: "/tmp/fake.mp3", Size: 1}, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, audio.Artifact) (string, error) {
	f.calls++
	return f.text, f.err
}

var testMeta = VideoMetadata{AID: 170001, BVID: "BV17x411w7KC", CID: 279786, Title: "t"}

func testOptions() ContentOptions {
	return ContentOptions{TranscriptionEnabled: true, RetryBackoff: 30 * time.Millisecond}
}

func TestContentFetcherSubtitleFound(t *testing.T) {
	api := &fakeAPI{
		subtitle: "字幕文本",
		comments: []Comment{{Author: "alice", Message: "好", Likes: 3}},
	}
	ex := &fakeExtractor{}
	f := NewContentFetcher(api, ex, &fakeTranscriber{}, testOptions())

	res, err := f.Fetch(context.Background(), testMeta)
	require.NoError(t, err)
	assert.Equal(t, SourceSubtitle, res.Source)
	assert.Equal(t, "字幕文本", res.Text)
	assert.Equal(t, 4, res.TextLength)
	assert.Equal(t, "alice: 好 (3赞)", res.Comments)
	assert.Empty(t, ex.urls, "audio path not taken")
	assert.Equal(t, 0, api.streamCalls)
}

func TestContentFetcherTranscriptionDisabled(t *testing.T) {
	api := &fakeAPI{subtitleErr: ErrNoSubtitle}
	opts := testOptions()
	opts.TranscriptionEnabled = false
	f := NewContentFetcher(api, &fakeExtractor{}, &fakeTranscriber{}, opts)

	_, err := f.Fetch(context.Background(), testMeta)
	assert.ErrorIs(t, err, ErrTranscriptionDisabled)
	assert.ErrorIs(t, err, ErrNoSubtitle)
	assert.Equal(t, 0, api.streamCalls)
}

func TestContentFetcherNilAudioDisablesTranscription(t *testing.T) {
	api := &fakeAPI{subtitleErr: ErrNoSubtitle}
	f := NewContentFetcher(api, nil, nil, testOptions())

	_, err := f.Fetch(context.Background(), testMeta)
	assert.ErrorIs(t, err, ErrTranscriptionDisabled)
}

func TestContentFetcherAudioFailsTwice(t *testing.T) {
	api := &fakeAPI{subtitleErr: ErrNoSubtitle}
	ex := &fakeExtractor{errs: []error{audio.ErrStreamExpired, audio.ErrExtractFailed, nil}}
	tr := &fakeTranscriber{text: "never"}
	opts := testOptions()
	f := NewContentFetcher(api, ex, tr, opts)

	_, err := f.Fetch(context.Background(), testMeta)
	require.ErrorIs(t, err, ErrAudioFailed)
	assert.Len(t, ex.urls, 2, "exactly two attempts")
	assert.Equal(t, 2, api.streamCalls, "locator refetched per attempt")
	assert.NotEqual(t, ex.urls[0], ex.urls[1])
	assert.GreaterOrEqual(t, ex.times[1].Sub(ex.times[0]), opts.RetryBackoff, "backoff between attempts")
	assert.Equal(t, 0, tr.calls)
}

func TestContentFetcherAudioSucceedsOnRetry(t *testing.T) {
	api := &fakeAPI{subtitleErr: ErrNoSubtitle}
	ex := &fakeExtractor{errs: []error{audio.ErrStreamExpired}}
	tr := &fakeTranscriber{text: "语音转写"}
	f := NewContentFetcher(api, ex, tr, testOptions())

	res, err := f.Fetch(context.Background(), testMeta)
	require.NoError(t, err)
	assert.Equal(t, SourceTranscript, res.Source)
	assert.Equal(t, "语音转写", res.Text)
	assert.Len(t, ex.urls, 2)
	assert.Equal(t, 1, tr.calls)
}

func TestContentFetcherDecoderMissingNotRetried(t *testing.T) {
	api := &fakeAPI{subtitleErr: ErrNoSubtitle}
	ex := &fakeExtractor{errs: []error{audio.ErrDecoderNotFound, nil}}
	f := NewContentFetcher(api, ex, &fakeTranscriber{}, testOptions())

	_, err := f.Fetch(context.Background(), testMeta)
	require.ErrorIs(t, err, audio.ErrDecoderNotFound)
	assert.ErrorIs(t, err, ErrAudioFailed)
	assert.Len(t, ex.urls, 1)
}

func TestContentFetcherNoStream(t *testing.T) {
	api := &fakeAPI{subtitleErr: ErrNoSubtitle, streamErr: ErrNoStream}
	ex := &fakeExtractor{}
	f := NewContentFetcher(api, ex, &fakeTranscriber{}, testOptions())

	_, err := f.Fetch(context.Background(), testMeta)
	require.ErrorIs(t, err, ErrNoStream)
	assert.Equal(t, 2, api.streamCalls)
	assert.Empty(t, ex.urls)
}

func TestContentFetcherTranscriptionMissIsTerminal(t *testing.T) {
	api := &fakeAPI{subtitleErr: ErrNoSubtitle}
	tr := &fakeTranscriber{err: errors.New("HTTP 500")}
	f := NewContentFetcher(api, &fakeExtractor{}, tr, testOptions())

	_, err := f.Fetch(context.Background(), testMeta)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.Equal(t, 1, tr.calls)
}

func TestContentFetcherCommentMissIsNonFatal(t *testing.T) {
	api := &fakeAPI{subtitle: "x", commentsErr: ErrNoComments}
	f := NewContentFetcher(api, nil, nil, testOptions())

	res, err := f.Fetch(context.Background(), testMeta)
	require.NoError(t, err)
	assert.Empty(t, res.Comments)
}
