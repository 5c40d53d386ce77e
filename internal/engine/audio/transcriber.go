package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
)

const (
	DefaultWhisperURL        = "https://api.openai.com/v1/audio/transcriptions"
	DefaultWhisperModel      = "whisper-1"
	DefaultTranscribeTimeout = 5 * time.Minute

	// softSizeLimit is the upload cap of the OpenAI endpoint. Larger files are
	// still sent; some compatible endpoints accept them.
	softSizeLimit = 25 << 20
)

// ErrTranscribe wraps every transcription miss.
var ErrTranscribe = errors.New("transcription failed")

// audioContentTypes covers the formats speech endpoints accept; mime's
// builtin table lacks most of them.
var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// Transcriber uploads artifacts to an OpenAI-compatible transcription endpoint.
type Transcriber struct {
	HTTP     *http.Client
	URL      string
	Model    string
	Language string
	APIKey   string
	Timeout  time.Duration
}

// NewTranscriber builds a transcriber from the engine config.
func NewTranscriber(c *engine.Config) *Transcriber {
	t := &Transcriber{
		URL:      c.WhisperAPIURL,
		Model:    c.WhisperModel,
		Language: c.AudioLanguage,
		APIKey:   c.TranscriptionKey(),
	}
	if t.URL == "" {
		t.URL = DefaultWhisperURL
	}
	if t.Model == "" {
		t.Model = DefaultWhisperModel
	}
	return t
}

// client defaults to one without an overall timeout; Timeout bounds each upload.
func (t *Transcriber) client() *http.Client {
	if t.HTTP != nil {
		return t.HTTP
	}
	return http.DefaultClient
}

// Transcribe uploads a and returns its text. a is removed on every path.
func (t *Transcriber) Transcribe(ctx context.Context, a Artifact) (string, error) {
	defer a.Remove()
	engine.IncrTranscriptions()

	text, err := t.transcribe(ctx, a)
	if err != nil {
		engine.IncrTranscriptionErrors()
		return "", fmt.Errorf("%w: %w", ErrTranscribe, err)
	}
	return text, nil
}

func (t *Transcriber) transcribe(ctx context.Context, a Artifact) (string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		slog.Error("audio: artifact unreadable", slog.String("path", a.Path), slog.Any("error", err))
		return "", err
	}
	if len(data) > softSizeLimit {
		slog.Warn("audio: artifact exceeds 25MB upload limit, sending anyway",
			slog.Float64("mb", float64(len(data))/(1<<20)))
	}

	body, contentType, err := t.buildForm(filepath.Base(a.Path), data)
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.URL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", engine.UserAgentBot)
	if t.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	slog.Info("audio: transcribing",
		slog.String("model", t.Model),
		slog.Float64("mb", float64(len(data))/(1<<20)))
	resp, err := t.client().Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			slog.Error("audio: transcription request timed out", slog.Duration("timeout", timeout))
		} else {
			slog.Error("audio: transcription request failed", slog.Any("error", err))
		}
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		attrs := []any{slog.Int("status", resp.StatusCode), slog.String("body", string(respBody))}
		var detail any
		if json.Unmarshal(respBody, &detail) == nil {
			attrs = append(attrs, slog.Any("detail", detail))
		}
		slog.Error("audio: transcription endpoint returned error", attrs...)
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	text := strings.TrimSpace(parseTranscription(respBody))
	if text == "" {
		slog.Warn("audio: transcription response is empty")
		return "", errors.New("empty transcript")
	}
	slog.Info("audio: transcribed", slog.Int("chars", len([]rune(text))))
	return text, nil
}

// buildForm encodes file, model, optional language and response_format.
func (t *Transcriber) buildForm(filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentTypeFor(filename))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	fields := [][2]string{{"model", t.Model}}
	if t.Language != "" {
		fields = append(fields, [2]string{"language", t.Language})
	}
	fields = append(fields, [2]string{"response_format", "json"})
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func contentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := audioContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// responseMatcher extracts text from one known response shape.
type responseMatcher func(body []byte) (string, bool)

// responseMatchers are tried in order; the first match wins.
var responseMatchers = []responseMatcher{
	matchTextField,
	matchDataTextField,
	matchPlainText,
	matchAnyJSON,
}

func parseTranscription(body []byte) string {
	for _, m := range responseMatchers {
		if s, ok := m(body); ok {
			return s
		}
	}
	return ""
}

// {"text": "..."}
func matchTextField(body []byte) (string, bool) {
	var v struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(body, &v) != nil || v.Text == "" {
		return "", false
	}
	return v.Text, true
}

// {"data": {"text": "..."}}
func matchDataTextField(body []byte) (string, bool) {
	var v struct {
		Data struct {
			Text string `json:"text"`
		} `json:"data"`
	}
	if json.Unmarshal(body, &v) != nil || v.Data.Text == "" {
		return "", false
	}
	return v.Data.Text, true
}

// Non-JSON bodies are the transcript itself.
func matchPlainText(body []byte) (string, bool) {
	if json.Valid(body) {
		return "", false
	}
	return string(body), true
}

// JSON with no known field degrades to its compact form.
func matchAnyJSON(body []byte) (string, bool) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return "", false
	}
	slog.Warn("audio: transcription response has no text field", slog.String("body", engine.TruncateRunes(buf.String(), 100, engine.Ellipsis)))
	return buf.String(), true
}
