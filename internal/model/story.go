// Package model はドメインモデルを定義する。
package model

import "strings"

// Story は検索APIから取得したストーリーを表す。
// ObjectIDで一意に識別され、取得後は変更されない値として扱う。
type Story struct {
	ObjectID    int    `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	NumComments int    `json:"num_comments"`
	Points      int    `json:"points"`
}

// SampleStories はチュートリアル初期版のインラインデータ。
// 擬似的な非同期フェッチ（StaticSource）で返される。
func SampleStories() []Story {
	return []Story{
		{
			ObjectID:    0,
			Title:       "React",
			URL:         "https://reactjs.org/",
			Author:      "Jordan Walke",
			NumComments: 3,
			Points:      4,
		},
		{
			ObjectID:    1,
			Title:       "Redux",
			URL:         "https://redux.js.org/",
			Author:      "Dan Abramov, Andrew Clark",
			NumComments: 2,
			Points:      5,
		},
	}
}

// FilterByTitle はタイトルにqueryを含むストーリーのみを返す（大文字小文字を区別しない）。
// queryが空の場合は入力をそのまま返す。入力スライスは変更しない。
func FilterByTitle(stories []Story, query string) []Story {
	if query == "" {
		return stories
	}
	q := strings.ToLower(query)
	filtered := make([]Story, 0, len(stories))
	for _, s := range stories {
		if strings.Contains(strings.ToLower(s.Title), q) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
