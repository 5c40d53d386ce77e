package bilibili

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const (
	testImgKey = "7cd084941338484aae1ad9425b84077c"
	testSubKey = "4932caff0ff746eab6f01bf08b70ac45"
	navBody    = `{"code":-101,"message":"账号未登录","data":{"isLogin":false,"wbi_img":{` +
		`"img_url":"https://i0.hdslb.com/bfs/wbi/` + testImgKey + `.png",` +
		`"sub_url":"https://i0.hdslb.com/bfs/wbi/` + testSubKey + `.png"}}}`
)

// newTestClient points a Client at an httptest server with pacing disabled.
func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := &Client{
		HTTP:    srv.Client(),
		APIBase: srv.URL,
	}
	c.Signer = NewWbiSigner(c)
	return c, srv
}

// fixedClock returns a settable clock for WbiSigner.now.
func fixedClock(t time.Time) (func() time.Time, func(time.Time)) {
	cur := t
	return func() time.Time { return cur }, func(n time.Time) { cur = n }
}
