package bilibili

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// VideoMetadata is one video's view record. Treated as immutable.
type VideoMetadata struct {
	AID         int64  `json:"aid"`
	BVID        string `json:"bvid"`
	CID         int64  `json:"cid"` // first page
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	Duration    int    `json:"duration"` // seconds
}

type viewData struct {
	AID      int64  `json:"aid"`
	BVID     string `json:"bvid"`
	Title    string `json:"title"`
	Desc     string `json:"desc"`
	Pic      string `json:"pic"`
	Duration int    `json:"duration"`
	Owner    struct {
		Name string `json:"name"`
	} `json:"owner"`
	Stat struct {
		View int64 `json:"view"`
		Like int64 `json:"like"`
	} `json:"stat"`
	Pages []struct {
		CID int64 `json:"cid"`
	} `json:"pages"`
}

// FetchMetadata loads the view record for id. Non-200, a non-zero code and a
// record without pages are all ErrMetadataUnavailable.
func (c *Client) FetchMetadata(ctx context.Context, id VideoID) (VideoMetadata, error) {
	params := url.Values{}
	switch id.Kind {
	case KindAV:
		params.Set("aid", strconv.FormatInt(id.AID, 10))
	case KindBV:
		params.Set("bvid", id.BVID)
	default:
		return VideoMetadata{}, fmt.Errorf("metadata for %q: %w", id.String(), ErrNoVideo)
	}

	var d viewData
	if err := c.getJSON(ctx, "/x/web-interface/view", params, false, &d); err != nil {
		slog.Warn("bilibili: metadata fetch failed", slog.String("video", id.String()), slog.Any("error", err))
		return VideoMetadata{}, fmt.Errorf("%s: %w: %w", id, ErrMetadataUnavailable, err)
	}
	if len(d.Pages) == 0 {
		slog.Warn("bilibili: video has no pages", slog.String("video", id.String()))
		return VideoMetadata{}, fmt.Errorf("%s: no pages: %w", id, ErrMetadataUnavailable)
	}

	m := VideoMetadata{
		AID:         d.AID,
		BVID:        d.BVID,
		CID:         d.Pages[0].CID,
		Title:       d.Title,
		Description: d.Desc,
		CoverURL:    d.Pic,
		OwnerName:   d.Owner.Name,
		Views:       d.Stat.View,
		Likes:       d.Stat.Like,
		Duration:    d.Duration,
	}
	slog.Info("bilibili: metadata fetched",
		slog.String("bvid", m.BVID),
		slog.Int64("aid", m.AID),
		slog.Int64("cid", m.CID),
		slog.String("title", m.Title))
	return m, nil
}
