package bilibili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
)

// DefaultAPIBase is the Bilibili web API origin.
const DefaultAPIBase = "https://api.bilibili.com"

// maxBodyBytes caps any single API response read into memory.
const maxBodyBytes = 8 << 20

// Miss sentinels. Every fetch in this package returns one of these (wrapped)
// when the upstream has nothing usable; callers never see raw transport errors
// without one of them in the chain.
var (
	ErrNoVideo             = errors.New("no bilibili video found")
	ErrMetadataUnavailable = errors.New("video metadata unavailable")
	ErrNoSubtitle          = errors.New("no subtitle available")
	ErrNoStream            = errors.New("no playable stream")
	ErrNoComments          = errors.New("no comments")
)

// APIError is a non-zero code in the Bilibili JSON envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bilibili api code %d: %s", e.Code, e.Message)
}

// wbiRejectedCode is returned when a signed request fails risk control.
const wbiRejectedCode = -352

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the Bilibili web API. Every request it makes is followed by
// a fixed pause of Interval, success or failure.
type Client struct {
	HTTP     *http.Client
	APIBase  string
	Sessdata string
	Interval time.Duration
	Signer   *WbiSigner
}

// NewClient builds a client from the engine config.
func NewClient(c *engine.Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	cl := &Client{
		HTTP:     hc,
		APIBase:  DefaultAPIBase,
		Sessdata: c.BilibiliSessdata,
		Interval: c.RequestInterval,
	}
	cl.Signer = NewWbiSigner(cl)
	return cl
}

// pace sleeps for the configured interval or until ctx is done.
func (c *Client) pace(ctx context.Context) {
	if c.Interval <= 0 {
		return
	}
	t := time.NewTimer(c.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// newRequest builds a GET with browser headers and the session cookie.
func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range engine.BrowserHeaders(engine.BilibiliReferer) {
		req.Header.Set(k, v)
	}
	if c.Sessdata != "" {
		req.AddCookie(&http.Cookie{Name: "SESSDATA", Value: c.Sessdata})
	}
	return req, nil
}

// fetch performs a paced GET and returns the body of a 200 response.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	defer c.pace(ctx)
	engine.IncrBilibiliRequests()

	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		engine.IncrBilibiliErrors()
		slog.Error("bilibili: request failed", slog.String("url", redactURL(rawURL)), slog.Any("error", err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		engine.IncrBilibiliErrors()
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		engine.IncrBilibiliErrors()
		slog.Error("bilibili: unexpected status",
			slog.String("url", redactURL(rawURL)),
			slog.Int("status", resp.StatusCode),
			slog.Bool("retryable", engine.IsRetryableStatus(resp.StatusCode)))
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, nil
}

// getJSON calls an API path and decodes the envelope's data into out.
// A non-zero envelope code is returned as *APIError.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, signed bool, out any) error {
	if signed {
		params = c.Signer.Sign(ctx, params)
	}
	rawURL := strings.TrimRight(c.APIBase, "/") + path
	if len(params) > 0 {
		rawURL += "?" + EncodeQuery(params)
	}

	body, err := c.fetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	if env.Code != 0 {
		if signed && env.Code == wbiRejectedCode {
			c.Signer.Invalidate()
		}
		return fmt.Errorf("%s: %w", path, &APIError{Code: env.Code, Message: env.Message})
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", path, err)
	}
	return nil
}

// redactURL drops the query string, which may carry signatures.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
