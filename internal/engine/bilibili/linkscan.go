package bilibili

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Video links as they appear in chat text and share cards, then bare ids.
// Full links come first so they win over the ids embedded in them.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://(?:www\.)?bilibili\.com/video/[^\s'"<>]+`),
	regexp.MustCompile(`(?i)https?://m\.bilibili\.com/video/[^\s'"<>]+`),
	regexp.MustCompile(`(?i)https?://b23\.tv/[^\s'"<>]+`),
	regexp.MustCompile(`BV[a-zA-Z0-9]{10}`),
	regexp.MustCompile(`(?i)av\d+`),
}

// ScanLinks returns every video link or bare id in text, in pattern order.
func ScanLinks(text string) []string {
	var out []string
	for _, re := range linkPatterns {
		out = append(out, re.FindAllString(text, -1)...)
	}
	return out
}

// ScanJSON walks every string in a JSON message card (object keys in sorted
// order) and collects links.
// Mini-program cards titled 哔哩哔哩/bilibili also contribute meta.detail_1's
// qqdocurl and url.
func ScanJSON(data []byte) []string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	links := walkJSON(v, nil)

	root, _ := v.(map[string]any)
	meta, _ := root["meta"].(map[string]any)
	detail, _ := meta["detail_1"].(map[string]any)
	if detail == nil {
		return links
	}
	title, _ := detail["title"].(string)
	if !strings.Contains(title, "哔哩哔哩") && !strings.Contains(strings.ToLower(title), "bilibili") {
		return links
	}
	for _, key := range []string{"qqdocurl", "url"} {
		if s, ok := detail[key].(string); ok && s != "" {
			links = append(links, ScanLinks(s)...)
		}
	}
	return links
}

func walkJSON(v any, acc []string) []string {
	switch t := v.(type) {
	case string:
		acc = append(acc, ScanLinks(t)...)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			acc = walkJSON(t[k], acc)
		}
	case []any:
		for _, child := range t {
			acc = walkJSON(child, acc)
		}
	}
	return acc
}

// ExtractCandidate picks the reference to resolve from raw message content:
// the first link or id found in a JSON card or text, else the trimmed content
// itself.
func ExtractCandidate(content string) (string, bool) {
	s := strings.TrimSpace(content)
	if s == "" {
		return "", false
	}
	var links []string
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		links = ScanJSON([]byte(s))
	}
	if len(links) == 0 {
		links = ScanLinks(s)
	}
	if len(links) > 0 {
		return links[0], true
	}
	return s, true
}
