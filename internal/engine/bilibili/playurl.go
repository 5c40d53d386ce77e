package bilibili

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

type playURLData struct {
	Durl []struct {
		URL string `json:"url"`
	} `json:"durl"`
	Dash *struct {
		Video []dashStream `json:"video"`
		Audio []dashStream `json:"audio"`
	} `json:"dash"`
}

type dashStream struct {
	BaseURL string `json:"baseUrl"`
}

// streamURL picks the first available locator: DASH audio, DASH video, then
// the flat durl list.
func (d playURLData) streamURL() string {
	if d.Dash != nil {
		if len(d.Dash.Audio) > 0 && d.Dash.Audio[0].BaseURL != "" {
			return d.Dash.Audio[0].BaseURL
		}
		if len(d.Dash.Video) > 0 && d.Dash.Video[0].BaseURL != "" {
			return d.Dash.Video[0].BaseURL
		}
	}
	if len(d.Durl) > 0 {
		return d.Durl[0].URL
	}
	return ""
}

// StreamURL requests a short-lived playable stream locator for one video part.
func (c *Client) StreamURL(ctx context.Context, aid, cid int64) (string, error) {
	params := url.Values{
		"avid":  {strconv.FormatInt(aid, 10)},
		"cid":   {strconv.FormatInt(cid, 10)},
		"qn":    {"16"},
		"fnval": {"16"},
		"fnver": {"0"},
		"fourk": {"0"},
	}
	var d playURLData
	if err := c.getJSON(ctx, "/x/player/wbi/playurl", params, true, &d); err != nil {
		slog.Warn("bilibili: stream locator failed", slog.Int64("aid", aid), slog.Any("error", err))
		return "", fmt.Errorf("playurl: %w: %w", ErrNoStream, err)
	}
	u := d.streamURL()
	if u == "" {
		slog.Warn("bilibili: stream locator list is empty", slog.Int64("aid", aid))
		return "", ErrNoStream
	}
	slog.Info("bilibili: stream locator fetched", slog.Int64("aid", aid))
	return u, nil
}
