package bilibili

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
)

// Kind tags which form a VideoID holds.
type Kind int

const (
	KindBV Kind = iota + 1
	KindAV
	KindShortLink // needs a redirect lookup before it identifies anything
)

// VideoID is a normalized video reference.
type VideoID struct {
	Kind     Kind
	BVID     string
	AID      int64
	ShortURL string
}

// String returns the canonical form: "BV…", "av<digits>", or the original
// short link unchanged.
func (v VideoID) String() string {
	switch v.Kind {
	case KindBV:
		return v.BVID
	case KindAV:
		return "av" + strconv.FormatInt(v.AID, 10)
	case KindShortLink:
		return v.ShortURL
	}
	return ""
}

// IsShortLink reports whether v still needs ResolveShortLink.
func (v VideoID) IsShortLink() bool { return v.Kind == KindShortLink }

var (
	bvRe        = regexp.MustCompile(`^BV[a-zA-Z0-9]{10}$`)
	bareBVRe    = regexp.MustCompile(`^[a-zA-Z0-9]{10}$`)
	avRe        = regexp.MustCompile(`^(?i:av)(\d+)$`)
	digitsRe    = regexp.MustCompile(`^\d+$`)
	videoPathRe = regexp.MustCompile(`/video/(BV[a-zA-Z0-9]{10}|(?i:av)\d+)`)
)

const (
	hostMain  = "bilibili.com"
	hostShort = "b23.tv"
)

// Normalize turns a loosely formatted reference into a VideoID.
// Recognized shapes, in priority order: BV code, bare 10-char code, av<digits>,
// bare digits, bilibili.com / b23.tv URL. A b23.tv link comes back as
// KindShortLink; resolve it with Client.ResolveShortLink.
func Normalize(input string) (VideoID, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return VideoID{}, false
	}
	if id, ok := normalizeLiteral(s); ok {
		return id, true
	}
	if !strings.Contains(s, hostMain) && !strings.Contains(s, hostShort) {
		return VideoID{}, false
	}
	return normalizeURL(s)
}

// normalizeLiteral applies the four non-URL shapes.
func normalizeLiteral(s string) (VideoID, bool) {
	switch {
	case bvRe.MatchString(s):
		return VideoID{Kind: KindBV, BVID: s}, true
	case bareBVRe.MatchString(s):
		return VideoID{Kind: KindBV, BVID: "BV" + s}, true
	}
	if m := avRe.FindStringSubmatch(s); m != nil {
		return avID(m[1])
	}
	if digitsRe.MatchString(s) {
		return avID(s)
	}
	return VideoID{}, false
}

func avID(digits string) (VideoID, bool) {
	aid, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return VideoID{}, false
	}
	return VideoID{Kind: KindAV, AID: aid}, true
}

func normalizeURL(s string) (VideoID, bool) {
	raw := s
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return VideoID{}, false
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, hostShort):
		return VideoID{Kind: KindShortLink, ShortURL: s}, true
	case strings.Contains(host, hostMain):
		if m := videoPathRe.FindStringSubmatch(u.Path); m != nil {
			return normalizeLiteral(m[1])
		}
		if bvid := u.Query().Get("bvid"); bvRe.MatchString(bvid) {
			return VideoID{Kind: KindBV, BVID: bvid}, true
		}
	}
	return VideoID{}, false
}

// ResolveShortLink follows exactly one redirect of a b23.tv link and
// normalizes the Location header. Anything but a 3xx with a non-short-link
// target is a miss.
func (c *Client) ResolveShortLink(ctx context.Context, shortURL string) (VideoID, bool) {
	engine.IncrShortLinkLookups()
	defer c.pace(ctx)

	target := strings.TrimSpace(shortURL)
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		slog.Warn("bilibili: bad short link", slog.String("url", shortURL), slog.Any("error", err))
		return VideoID{}, false
	}
	for k, v := range engine.BrowserHeaders("") {
		req.Header.Set(k, v)
	}

	hc := *c.HTTP
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := hc.Do(req)
	if err != nil {
		slog.Error("bilibili: short link lookup failed", slog.String("url", shortURL), slog.Any("error", err))
		return VideoID{}, false
	}
	resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		slog.Warn("bilibili: short link did not redirect", slog.String("url", shortURL), slog.Int("status", resp.StatusCode))
		return VideoID{}, false
	}
	loc, err := resp.Location()
	if err != nil {
		slog.Warn("bilibili: short link redirect without location", slog.String("url", shortURL))
		return VideoID{}, false
	}
	id, ok := Normalize(loc.String())
	if !ok || id.IsShortLink() {
		slog.Info("bilibili: short link target is not a video", slog.String("location", loc.String()))
		return VideoID{}, false
	}
	return id, true
}

// Resolve normalizes input and follows a short link if needed.
func (c *Client) Resolve(ctx context.Context, input string) (VideoID, error) {
	engine.IncrResolveRequests()
	id, ok := Normalize(input)
	if !ok {
		return VideoID{}, ErrNoVideo
	}
	if !id.IsShortLink() {
		return id, nil
	}
	resolved, ok := c.ResolveShortLink(ctx, id.ShortURL)
	if !ok {
		return VideoID{}, fmt.Errorf("short link %s: %w", id.ShortURL, ErrNoVideo)
	}
	slog.Info("bilibili: short link resolved", slog.String("from", id.ShortURL), slog.String("to", resolved.String()))
	return resolved, nil
}

// ConvertAVToBV looks up the BV code for a numeric aid.
func (c *Client) ConvertAVToBV(ctx context.Context, aid int64) (string, bool) {
	var data struct {
		BVID string `json:"bvid"`
	}
	params := url.Values{"aid": {strconv.FormatInt(aid, 10)}}
	if err := c.getJSON(ctx, "/x/web-interface/view", params, false, &data); err != nil {
		slog.Warn("bilibili: av to bv lookup failed", slog.Int64("aid", aid), slog.Any("error", err))
		return "", false
	}
	if !bvRe.MatchString(data.BVID) {
		slog.Warn("bilibili: av to bv lookup returned no bvid", slog.Int64("aid", aid))
		return "", false
	}
	return data.BVID, true
}
