package bilibili

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
)

// Comment sort orders accepted by /x/v2/reply.
const (
	SortByTime  = 0
	SortByLikes = 1
)

const (
	defaultCommentLimit    = 10
	defaultCommentMaxChars = 200
)

// Comment is one top-level reply.
type Comment struct {
	Author  string
	Message string
	Likes   int64
}

type replyData struct {
	Replies []struct {
		Like   int64 `json:"like"`
		Member struct {
			Uname string `json:"uname"`
		} `json:"member"`
		Content struct {
			Message string `json:"message"`
		} `json:"content"`
	} `json:"replies"`
}

// Comments fetches the first page of top-level replies sorted by likes.
func (c *Client) Comments(ctx context.Context, aid int64, limit int) ([]Comment, error) {
	if limit <= 0 {
		limit = defaultCommentLimit
	}
	params := url.Values{
		"type": {"1"},
		"oid":  {strconv.FormatInt(aid, 10)},
		"sort": {strconv.Itoa(SortByLikes)},
		"pn":   {"1"},
		"ps":   {strconv.Itoa(limit)},
	}
	var d replyData
	if err := c.getJSON(ctx, "/x/v2/reply", params, false, &d); err != nil {
		slog.Warn("bilibili: comments fetch failed", slog.Int64("aid", aid), slog.Any("error", err))
		return nil, fmt.Errorf("comments: %w: %w", ErrNoComments, err)
	}

	out := make([]Comment, 0, len(d.Replies))
	for _, r := range d.Replies {
		msg := strings.TrimSpace(r.Content.Message)
		if msg == "" {
			continue
		}
		out = append(out, Comment{Author: r.Member.Uname, Message: msg, Likes: r.Like})
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		slog.Info("bilibili: video has no comments", slog.Int64("aid", aid))
		return nil, ErrNoComments
	}
	return out, nil
}

// FormatComments renders comments one per line, each message capped at maxChars runes.
func FormatComments(comments []Comment, maxChars int) string {
	if maxChars <= 0 {
		maxChars = defaultCommentMaxChars
	}
	var sb strings.Builder
	for i, cm := range comments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		msg, _ := engine.TruncateChars(strings.Join(strings.Fields(cm.Message), " "), maxChars)
		fmt.Fprintf(&sb, "%s: %s (%d赞)", cm.Author, msg, cm.Likes)
	}
	return sb.String()
}
