package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExtractorArgs(t *testing.T) {
	e := &Extractor{}
	args := e.args("https://upos.example/a.m4s", "/tmp/out.mp3", 300*time.Second)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-referer https://www.bilibili.com/")
	assert.Contains(t, joined, "-reconnect 1 -reconnect_streamed 1 -reconnect_delay_max 5")
	assert.Contains(t, joined, "-i https://upos.example/a.m4s -vn -acodec libmp3lame -ar 16000 -ac 1 -b:a 64k")
	assert.Contains(t, joined, "-t 300")
	assert.Equal(t, []string{"-y", "/tmp/out.mp3"}, args[len(args)-2:])
	assert.Equal(t, "-user_agent", args[0])

	noCap := strings.Join(e.args("u", "o", 0), " ")
	assert.NotContains(t, noCap, "-t ")
}

func TestExtractSuccess(t *testing.T) {
	dir := t.TempDir()
	// last argument is the output path
	bin := fakeFFmpeg(t, `for last; do :; done; printf 'ID3fakeaudio' > "$last"`)
	e := &Extractor{FFmpegPath: bin, TempDir: dir}

	a, err := e.Extract(context.Background(), "https://upos.example/a.m4s", 0)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(a.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(a.Path), "bilibili_audio_"))
	assert.Equal(t, ".mp3", filepath.Ext(a.Path))
	assert.Equal(t, int64(len("ID3fakeaudio")), a.Size)

	require.NoError(t, a.Remove())
	assert.NoFileExists(t, a.Path)
}

func TestExtractUniquePaths(t *testing.T) {
	dir := t.TempDir()
	bin := fakeFFmpeg(t, `for last; do :; done; echo x > "$last"`)
	e := &Extractor{FFmpegPath: bin, TempDir: dir}

	a1, err := e.Extract(context.Background(), "u", 0)
	require.NoError(t, err)
	a2, err := e.Extract(context.Background(), "u", 0)
	require.NoError(t, err)
	assert.NotEqual(t, a1.Path, a2.Path)
}

func TestExtractDecoderNotFound(t *testing.T) {
	e := &Extractor{FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg"), TempDir: t.TempDir()}
	_, err := e.Extract(context.Background(), "u", 0)
	assert.True(t, errors.Is(err, ErrDecoderNotFound), "got %v", err)

	e = &Extractor{FFmpegPath: "definitely-not-a-real-ffmpeg-binary", TempDir: t.TempDir()}
	_, err = e.Extract(context.Background(), "u", 0)
	assert.True(t, errors.Is(err, ErrDecoderNotFound), "got %v", err)
}

func TestExtractTimeout(t *testing.T) {
	dir := t.TempDir()
	bin := fakeFFmpeg(t, `for last; do :; done; echo partial > "$last"; exec sleep 5`)
	e := &Extractor{FFmpegPath: bin, TempDir: dir, Timeout: 200 * time.Millisecond}

	start := time.Now()
	_, err := e.Extract(context.Background(), "u", 0)
	assert.True(t, errors.Is(err, ErrExtractTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second, "process killed, not awaited to completion")
	assert.Empty(t, dirEntries(t, dir), "partial output removed")
}

func TestExtractStreamExpired(t *testing.T) {
	dir := t.TempDir()
	bin := fakeFFmpeg(t, `echo "[https @ 0x1] HTTP error 403 Forbidden" >&2; echo "Server returned 403 Forbidden (access denied)" >&2; exit 1`)
	e := &Extractor{FFmpegPath: bin, TempDir: dir}

	_, err := e.Extract(context.Background(), "u", 0)
	assert.True(t, errors.Is(err, ErrStreamExpired), "got %v", err)
	assert.Empty(t, dirEntries(t, dir))
}

func TestExtractGenericFailure(t *testing.T) {
	dir := t.TempDir()
	bin := fakeFFmpeg(t, `for last; do :; done; echo junk > "$last"; echo "Unknown encoder 'libmp3lame'" >&2; exit 3`)
	e := &Extractor{FFmpegPath: bin, TempDir: dir}

	_, err := e.Extract(context.Background(), "u", 0)
	assert.True(t, errors.Is(err, ErrExtractFailed), "got %v", err)
	assert.Contains(t, err.Error(), "exit 3")
	assert.Empty(t, dirEntries(t, dir), "partial output removed")
}

func TestExtractEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	bin := fakeFFmpeg(t, `for last; do :; done; : > "$last"`)
	e := &Extractor{FFmpegPath: bin, TempDir: dir}

	_, err := e.Extract(context.Background(), "u", 0)
	assert.True(t, errors.Is(err, ErrExtractFailed), "got %v", err)
	assert.Empty(t, dirEntries(t, dir))
}

func TestExtractContextCanceled(t *testing.T) {
	bin := fakeFFmpeg(t, `exec sleep 5`)
	e := &Extractor{FFmpegPath: bin, TempDir: t.TempDir()}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := e.Extract(ctx, "u", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrExtractTimeout))
}

func TestStreamExpiredMarkers(t *testing.T) {
	for _, s := range []string{
		"https://x: Stream ends prematurely at 1024",
		"u: Invalid data found when processing input",
		"HTTP error 404 Not Found",
	} {
		assert.True(t, streamExpired(s), s)
	}
	assert.False(t, streamExpired("Conversion failed!"))
}

func TestLastLines(t *testing.T) {
	s := "a\nb\n\nc\nd\ne\nf\n"
	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, lastLines(s, 5))
	assert.Equal(t, []string{"f"}, lastLines(s, 1))
	assert.Empty(t, lastLines("", 5))
}
