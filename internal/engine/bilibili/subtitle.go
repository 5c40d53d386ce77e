package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
)

// DefaultSubtitleLanguage is matched against a track's lan_doc label.
const DefaultSubtitleLanguage = "中文"

// SubtitleTrack is one entry of the player's subtitle list.
type SubtitleTrack struct {
	Lang    string `json:"lan"`
	LangDoc string `json:"lan_doc"`
	URL     string `json:"subtitle_url"`
}

type playerV2Data struct {
	NeedLoginSubtitle bool `json:"need_login_subtitle"`
	Subtitle          struct {
		Subtitles []SubtitleTrack `json:"subtitles"`
	} `json:"subtitle"`
}

type subtitleDoc struct {
	Body []struct {
		Content string `json:"content"`
	} `json:"body"`
}

// SubtitleTracks lists the subtitle tracks of one video part.
// An empty list is ErrNoSubtitle whether or not login would have helped.
func (c *Client) SubtitleTracks(ctx context.Context, aid, cid int64) ([]SubtitleTrack, error) {
	params := url.Values{
		"aid": {strconv.FormatInt(aid, 10)},
		"cid": {strconv.FormatInt(cid, 10)},
	}
	var d playerV2Data
	if err := c.getJSON(ctx, "/x/player/wbi/v2", params, true, &d); err != nil {
		slog.Warn("bilibili: subtitle list failed", slog.Int64("aid", aid), slog.Any("error", err))
		return nil, fmt.Errorf("subtitle list: %w: %w", ErrNoSubtitle, err)
	}
	if len(d.Subtitle.Subtitles) == 0 {
		if d.NeedLoginSubtitle {
			slog.Warn("bilibili: subtitles require login, check BILIBILI_SESSDATA", slog.Int64("aid", aid))
			return nil, fmt.Errorf("login required: %w", ErrNoSubtitle)
		}
		slog.Info("bilibili: video has no subtitles", slog.Int64("aid", aid))
		return nil, ErrNoSubtitle
	}
	return d.Subtitle.Subtitles, nil
}

// SelectTrack picks the first track whose label contains want, else the first track.
func SelectTrack(tracks []SubtitleTrack, want string) SubtitleTrack {
	if want != "" {
		for _, t := range tracks {
			if strings.Contains(t.LangDoc, want) {
				return t
			}
		}
	}
	return tracks[0]
}

// absSubtitleURL completes protocol-relative and scheme-less track URLs.
func absSubtitleURL(u string) string {
	switch {
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case !strings.HasPrefix(u, "http"):
		return "https://" + u
	}
	return u
}

// joinSubtitleBody joins trimmed, non-empty segments with single spaces.
func joinSubtitleBody(doc subtitleDoc) string {
	parts := make([]string, 0, len(doc.Body))
	for _, item := range doc.Body {
		if s := strings.TrimSpace(item.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// DownloadSubtitle fetches a subtitle document and flattens it to text capped
// at maxChars runes. An empty document is ErrNoSubtitle.
func (c *Client) DownloadSubtitle(ctx context.Context, subtitleURL string, maxChars int) (string, error) {
	body, err := c.fetch(ctx, absSubtitleURL(subtitleURL))
	if err != nil {
		return "", fmt.Errorf("subtitle download: %w: %w", ErrNoSubtitle, err)
	}
	var doc subtitleDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		slog.Warn("bilibili: subtitle document malformed", slog.Any("error", err))
		return "", fmt.Errorf("subtitle decode: %w: %w", ErrNoSubtitle, err)
	}

	text := joinSubtitleBody(doc)
	if text == "" {
		slog.Warn("bilibili: subtitle document is empty")
		return "", fmt.Errorf("empty body: %w", ErrNoSubtitle)
	}
	out, cut := engine.TruncateChars(text, maxChars)
	if cut {
		slog.Info("bilibili: subtitle truncated",
			slog.Int("chars", len([]rune(text))),
			slog.Int("max", maxChars))
	} else {
		slog.Info("bilibili: subtitle fetched", slog.Int("chars", len([]rune(text))))
	}
	return out, nil
}

// FetchSubtitle runs track listing, selection and download for one video part.
func (c *Client) FetchSubtitle(ctx context.Context, aid, cid int64, lang string, maxChars int) (string, error) {
	tracks, err := c.SubtitleTracks(ctx, aid, cid)
	if err != nil {
		return "", err
	}
	t := SelectTrack(tracks, lang)
	if t.URL == "" {
		slog.Warn("bilibili: selected subtitle track has no url", slog.String("lan_doc", t.LangDoc))
		return "", fmt.Errorf("track %s without url: %w", t.Lang, ErrNoSubtitle)
	}
	slog.Info("bilibili: subtitle track selected", slog.String("lan_doc", t.LangDoc))
	return c.DownloadSubtitle(ctx, t.URL, maxChars)
}
