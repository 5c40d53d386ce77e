package bilibili

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewBody = `{"code":0,"message":"0","data":{
	"aid":170001,"bvid":"BV17x411w7KC","title":"保加利亚妖王","desc":"简介",
	"pic":"https://i0.hdslb.com/cover.jpg","duration":217,
	"owner":{"name":"up主"},"stat":{"view":1000,"like":99},
	"pages":[{"cid":279786},{"cid":279787}]}}`

func TestFetchMetadata(t *testing.T) {
	var gotQuery atomic.Value
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/x/web-interface/view", r.URL.Path)
		assert.Equal(t, "https://www.bilibili.com/", r.Header.Get("Referer"))
		gotQuery.Store(r.URL.RawQuery)
		w.Write([]byte(viewBody))
	}))
	ctx := context.Background()

	m, err := c.FetchMetadata(ctx, VideoID{Kind: KindBV, BVID: "BV17x411w7KC"})
	require.NoError(t, err)
	assert.Equal(t, "bvid=BV17x411w7KC", gotQuery.Load())
	assert.Equal(t, VideoMetadata{
		AID:         170001,
		BVID:        "BV17x411w7KC",
		CID:         279786,
		Title:       "保加利亚妖王",
		Description: "简介",
		CoverURL:    "https://i0.hdslb.com/cover.jpg",
		OwnerName:   "up主",
		Views:       1000,
		Likes:       99,
		Duration:    217,
	}, m)

	_, err = c.FetchMetadata(ctx, VideoID{Kind: KindAV, AID: 170001})
	require.NoError(t, err)
	assert.Equal(t, "aid=170001", gotQuery.Load())
}

func TestFetchMetadataMisses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-zero code", http.StatusOK, `{"code":-404,"message":"啥都木有"}`},
		{"http error", http.StatusBadGateway, `{"code":0}`},
		{"no pages", http.StatusOK, `{"code":0,"data":{"aid":1,"bvid":"BV17x411w7KC","pages":[]}}`},
		{"malformed", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			_, err := c.FetchMetadata(context.Background(), VideoID{Kind: KindAV, AID: 1})
			assert.True(t, errors.Is(err, ErrMetadataUnavailable), "got %v", err)
		})
	}
}

func TestFetchMetadataAPIErrorExposed(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":62002,"message":"稿件不可见"}`))
	}))
	_, err := c.FetchMetadata(context.Background(), VideoID{Kind: KindAV, AID: 1})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 62002, apiErr.Code)
}

func TestFetchMetadataPacesOnFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	c.Interval = 50 * time.Millisecond

	start := time.Now()
	_, err := c.FetchMetadata(context.Background(), VideoID{Kind: KindAV, AID: 1})
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchMetadataRejectsShortLink(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.FetchMetadata(context.Background(), VideoID{Kind: KindShortLink, ShortURL: "https://b23.tv/x"})
	assert.True(t, errors.Is(err, ErrNoVideo))
}
