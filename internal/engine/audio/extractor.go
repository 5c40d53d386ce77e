package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
)

var (
	ErrDecoderNotFound = errors.New("ffmpeg binary not found")
	ErrStreamExpired   = errors.New("audio stream expired or forbidden")
	ErrExtractTimeout  = errors.New("audio extraction timed out")
	ErrExtractFailed   = errors.New("audio extraction failed")
)

// DefaultExtractTimeout bounds one ffmpeg run.
const DefaultExtractTimeout = 5 * time.Minute

// expiredMarkers are ffmpeg diagnostics meaning the locator needs refreshing.
var expiredMarkers = []string{
	"Stream ends prematurely",
	"Invalid data found",
	"403 Forbidden",
	"404 Not Found",
}

// Extractor pulls a mono 16 kHz 64 kbps mp3 out of a remote stream with ffmpeg.
type Extractor struct {
	FFmpegPath string
	TempDir    string
	Timeout    time.Duration
	UserAgent  string
	Referer    string
}

// NewExtractor builds an extractor from the engine config.
func NewExtractor(c *engine.Config) *Extractor {
	return &Extractor{
		FFmpegPath: c.FFmpegPath,
		TempDir:    c.AudioTempDir,
	}
}

func (e *Extractor) binary() string {
	if e.FFmpegPath != "" {
		return e.FFmpegPath
	}
	return "ffmpeg"
}

func (e *Extractor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultExtractTimeout
}

// args builds the ffmpeg command line. maxDuration <= 0 extracts the whole stream.
func (e *Extractor) args(streamURL, out string, maxDuration time.Duration) []string {
	ua, ref := e.UserAgent, e.Referer
	if ua == "" {
		ua = engine.UserAgentChrome
	}
	if ref == "" {
		ref = engine.BilibiliReferer
	}
	args := []string{
		"-user_agent", ua,
		"-referer", ref,
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", streamURL,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "64k",
	}
	if sec := int(maxDuration / time.Second); sec > 0 {
		args = append(args, "-t", strconv.Itoa(sec))
	}
	return append(args, "-y", out)
}

// Extract runs ffmpeg against streamURL. The process is killed and awaited
// when the timeout or ctx fires; partial output is removed on failure.
func (e *Extractor) Extract(ctx context.Context, streamURL string, maxDuration time.Duration) (Artifact, error) {
	engine.IncrAudioExtractions()
	out := newArtifactPath(e.TempDir)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary(), e.args(streamURL, out, maxDuration)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	slog.Info("audio: extracting", slog.Duration("max_duration", maxDuration))
	start := time.Now()
	runErr := cmd.Run()

	if runErr == nil {
		if fi, err := os.Stat(out); err == nil && fi.Size() > 0 {
			slog.Info("audio: extracted",
				slog.String("path", out),
				slog.Int64("bytes", fi.Size()),
				slog.Duration("elapsed", time.Since(start)))
			return Artifact{Path: out, Size: fi.Size()}, nil
		}
	}

	engine.IncrAudioExtractFailures()
	_ = Artifact{Path: out}.Remove()
	return Artifact{}, e.classify(ctx, runCtx, runErr, cmd, stderr.String())
}

// classify maps a failed run onto one of the package sentinels.
func (e *Extractor) classify(ctx, runCtx context.Context, runErr error, cmd *exec.Cmd, stderr string) error {
	switch {
	case runErr == nil:
		slog.Error("audio: ffmpeg exited cleanly but produced no output")
		return fmt.Errorf("empty output: %w", ErrExtractFailed)
	case errors.Is(runErr, exec.ErrNotFound) || (cmd.ProcessState == nil && errors.Is(runErr, fs.ErrNotExist)):
		slog.Error("audio: ffmpeg not found, install it or set FFMPEG_PATH", slog.String("path", e.binary()))
		return fmt.Errorf("%s: %w", e.binary(), ErrDecoderNotFound)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		slog.Error("audio: ffmpeg timed out", slog.Duration("timeout", e.timeout()))
		return fmt.Errorf("after %s: %w", e.timeout(), ErrExtractTimeout)
	case streamExpired(stderr):
		slog.Error("audio: stream url expired or blocked by hotlink protection")
		return ErrStreamExpired
	}

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	slog.Error("audio: ffmpeg failed",
		slog.Int("exit_code", code),
		slog.String("stderr", strings.Join(lastLines(stderr, 5), " | ")))
	return fmt.Errorf("exit %d: %w", code, ErrExtractFailed)
}

func streamExpired(stderr string) bool {
	for _, m := range expiredMarkers {
		if strings.Contains(stderr, m) {
			return true
		}
	}
	return false
}

// lastLines returns up to n trailing non-empty lines of s.
func lastLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			out = append(out, l)
		}
	}
	slices.Reverse(out)
	return out
}
