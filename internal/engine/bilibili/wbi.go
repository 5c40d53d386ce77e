package bilibili

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/go_bilisum/internal/engine"
)

// wbi request signing.
// Key fragments come from /x/web-interface/nav (wbi_img.img_url / sub_url file
// stems), are scrambled through mixinKeyEncTab and appended to the sorted
// query before MD5-ing it into w_rid.

const wbiKeyTTL = time.Hour

// mixinKeyEncTab is the fixed character permutation used by the web player.
var mixinKeyEncTab = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35, 27, 43, 5, 49,
	33, 9, 42, 19, 29, 28, 14, 39, 12, 38, 41, 13, 37, 48, 7, 16, 24, 55, 40,
	61, 26, 17, 0, 1, 60, 51, 30, 4, 22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11,
	36, 20, 34, 44, 52,
}

// KeyPair holds the two server-published key fragments.
type KeyPair struct {
	ImgKey    string
	SubKey    string
	FetchedAt time.Time
}

// Empty reports whether the pair is unusable for signing.
func (k KeyPair) Empty() bool { return k.ImgKey == "" || k.SubKey == "" }

// WbiSigner caches the key pair process-wide and signs parameter sets.
// Concurrent refreshes may race; the last swap wins.
type WbiSigner struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time
	cached atomic.Pointer[KeyPair]
}

// NewWbiSigner returns a signer that fetches keys through client.
func NewWbiSigner(client *Client) *WbiSigner {
	return &WbiSigner{client: client, ttl: wbiKeyTTL, now: time.Now}
}

// Keys returns the cached pair while fresh, otherwise refetches it.
// A failed or empty fetch yields an empty KeyPair, which is not cached.
func (s *WbiSigner) Keys(ctx context.Context) KeyPair {
	if k := s.cached.Load(); k != nil && s.now().Sub(k.FetchedAt) < s.ttl {
		return *k
	}

	img, sub, err := s.fetchKeys(ctx)
	if err != nil {
		slog.Warn("wbi: key fetch failed, requests go unsigned", slog.Any("error", err))
		return KeyPair{}
	}
	if img == "" || sub == "" {
		slog.Warn("wbi: nav returned empty key fragments, requests go unsigned")
		return KeyPair{}
	}

	k := &KeyPair{ImgKey: img, SubKey: sub, FetchedAt: s.now()}
	s.cached.Store(k)
	engine.IncrWbiKeyRefreshes()
	slog.Debug("wbi: keys refreshed")
	return *k
}

// Invalidate drops the cached pair so the next Keys call refetches.
func (s *WbiSigner) Invalidate() {
	s.cached.Store(nil)
}

type navResponse struct {
	Data struct {
		WbiImg struct {
			ImgURL string `json:"img_url"`
			SubURL string `json:"sub_url"`
		} `json:"wbi_img"`
	} `json:"data"`
}

// fetchKeys reads the key fragments from the nav endpoint. The envelope code
// is ignored: anonymous sessions get -101 but still receive wbi_img.
func (s *WbiSigner) fetchKeys(ctx context.Context) (img, sub string, err error) {
	c := s.client
	body, err := c.fetch(ctx, strings.TrimRight(c.APIBase, "/")+"/x/web-interface/nav")
	if err != nil {
		return "", "", err
	}
	var nav navResponse
	if err := json.Unmarshal(body, &nav); err != nil {
		return "", "", err
	}
	return fileStem(nav.Data.WbiImg.ImgURL), fileStem(nav.Data.WbiImg.SubURL), nil
}

// fileStem returns the last path element of rawURL without its extension.
func fileStem(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// MixinKey scrambles the concatenated fragments into the 32-char signing key.
// Table positions beyond the end of raw are skipped.
func MixinKey(raw string) string {
	var sb strings.Builder
	sb.Grow(32)
	for _, i := range mixinKeyEncTab {
		if i < len(raw) {
			sb.WriteByte(raw[i])
		}
		if sb.Len() == 32 {
			break
		}
	}
	return sb.String()
}

// Sign returns a fresh copy of params carrying wts and w_rid. Without keys the
// copy is returned unsigned.
func (s *WbiSigner) Sign(ctx context.Context, params url.Values) url.Values {
	k := s.Keys(ctx)
	if k.Empty() {
		out := make(url.Values, len(params))
		for key, vs := range params {
			out[key] = append([]string(nil), vs...)
		}
		return out
	}
	return signWith(params, MixinKey(k.ImgKey+k.SubKey), s.now().Unix())
}

// signWith adds wts, strips the characters the server drops, and appends
// w_rid = md5(sorted query + mixin key).
func signWith(params url.Values, mixinKey string, wts int64) url.Values {
	out := make(url.Values, len(params)+2)
	for key, vs := range params {
		clean := make([]string, len(vs))
		for i, v := range vs {
			clean[i] = sanitizeWbiValue(v)
		}
		out[key] = clean
	}
	out.Set("wts", strconv.FormatInt(wts, 10))

	sum := md5.Sum([]byte(EncodeQuery(out) + mixinKey))
	out.Set("w_rid", hex.EncodeToString(sum[:]))
	return out
}

func sanitizeWbiValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '!', '\'', '(', ')', '*':
			return -1
		}
		return r
	}, v)
}

// EncodeQuery encodes v sorted by key with spaces as %20.
func EncodeQuery(v url.Values) string {
	return strings.ReplaceAll(v.Encode(), "+", "%20")
}
