package hnapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hitoshi/hnsearch/internal/model"
)

// AlgoliaDecoder はHN Algolia検索APIのJSONをデコードする。
//
// 受け付ける形式:
//
//	{"hits": [...]}
//	{"hits": {"hits": [...]}}
//	[...]
//
// タイトルを持たないヒット（コメント等）と、objectIDが数値として解釈できないヒットは除外する。
// objectIDが重複する場合は最初のヒットを採用する。
type AlgoliaDecoder struct{}

// algoliaHit はHN Algolia APIのヒット1件。
type algoliaHit struct {
	ObjectID    flexInt `json:"objectID"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Author      string  `json:"author"`
	NumComments *int    `json:"num_comments"`
	Points      *int    `json:"points"`
}

// flexInt は数値または数値文字列のJSONを受け付ける整数。
type flexInt struct {
	value int
	valid bool
}

// UnmarshalJSON はjson.Unmarshalerを実装する。解釈できない値はエラーにせず無効として扱う。
func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	n, err := strconv.Atoi(s)
	if err != nil {
		f.valid = false
		return nil
	}
	f.value = n
	f.valid = true
	return nil
}

var errNoHits = errors.New("response has no hits array")

// Decode はJSONボディをストーリー列に変換する。
func (AlgoliaDecoder) Decode(body []byte) ([]model.Story, error) {
	raw, err := extractHits(bytes.TrimSpace(body), 0)
	if err != nil {
		return nil, err
	}

	var hits []algoliaHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("invalid hits: %w", err)
	}

	stories := make([]model.Story, 0, len(hits))
	seen := make(map[int]struct{}, len(hits))
	for _, h := range hits {
		if !h.ObjectID.valid || h.Title == "" {
			continue
		}
		if _, dup := seen[h.ObjectID.value]; dup {
			continue
		}
		seen[h.ObjectID.value] = struct{}{}

		stories = append(stories, model.Story{
			ObjectID:    h.ObjectID.value,
			Title:       h.Title,
			URL:         h.URL,
			Author:      h.Author,
			NumComments: nonNegative(h.NumComments),
			Points:      deref(h.Points),
		})
	}
	return stories, nil
}

// extractHits はhits配列の生JSONを取り出す。ネストは1段まで辿る。
func extractHits(data []byte, depth int) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, errNoHits
	}
	if data[0] == '[' {
		return data, nil
	}
	if data[0] != '{' || depth > 1 {
		return nil, errNoHits
	}

	var envelope struct {
		Hits json.RawMessage `json:"hits"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	if len(envelope.Hits) == 0 || string(envelope.Hits) == "null" {
		return nil, errNoHits
	}
	return extractHits(bytes.TrimSpace(envelope.Hits), depth+1)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func nonNegative(p *int) int {
	if n := deref(p); n > 0 {
		return n
	}
	return 0
}
