package hnapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/hnsearch/internal/model"
)

var (
	itemIDPattern   = regexp.MustCompile(`[?&]id=(\d+)`)
	pointsPattern   = regexp.MustCompile(`Points:\s*(-?\d+)`)
	commentsPattern = regexp.MustCompile(`#\s*Comments:\s*(\d+)`)
)

// RSSDecoder はhnrss.org形式のRSS/Atomフィードをデコードする。
// objectIDはGUIDまたはコメントURLの id パラメータから取得し、
// ポイント数とコメント数は本文テキストから抽出する。
type RSSDecoder struct{}

// Decode はフィードボディをストーリー列に変換する。
func (RSSDecoder) Decode(body []byte) ([]model.Story, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid feed: %w", err)
	}

	stories := make([]model.Story, 0, len(feed.Items))
	seen := make(map[int]struct{}, len(feed.Items))
	for _, item := range feed.Items {
		id, ok := rssObjectID(item)
		if !ok || item.Title == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		text := htmlText(item.Description)
		stories = append(stories, model.Story{
			ObjectID:    id,
			Title:       item.Title,
			URL:         item.Link,
			Author:      rssAuthor(item),
			NumComments: matchInt(commentsPattern, text),
			Points:      matchInt(pointsPattern, text),
		})
	}
	return stories, nil
}

func rssObjectID(item *gofeed.Item) (int, bool) {
	candidates := []string{item.GUID, item.Link}
	if c, ok := item.Custom["comments"]; ok {
		candidates = append(candidates, c)
	}
	for _, c := range candidates {
		if m := itemIDPattern.FindStringSubmatch(c); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func rssAuthor(item *gofeed.Item) string {
	names := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return strings.Join(item.DublinCoreExt.Creator, ", ")
	}
	return ""
}

// htmlText はHTML断片からテキストノードのみを連結して返す。
func htmlText(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}

func matchInt(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
