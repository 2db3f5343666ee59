package liststate

import "github.com/hitoshi/hnsearch/internal/model"

// State はストーリー一覧リソースの状態。
// IsLoadingとIsErrorが同時にtrueになることはない。
type State struct {
	Items     []model.Story `json:"items"`
	IsLoading bool          `json:"is_loading"`
	IsError   bool          `json:"is_error"`
}

// InitialState はマウント時の初期状態を返す。
func InitialState() State {
	return State{
		Items:     []model.Story{},
		IsLoading: false,
		IsError:   false,
	}
}

// Reduce は(state, action)から次の状態を返す純粋関数。
// 入力のstateは変更しない。未知のアクションの場合はUnknownActionErrorでpanicする。
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case FetchInit:
		return State{
			Items:     state.Items,
			IsLoading: true,
			IsError:   false,
		}
	case FetchSuccess:
		return State{
			Items:     copyStories(a.Items),
			IsLoading: false,
			IsError:   false,
		}
	case FetchFailure:
		return State{
			Items:     state.Items,
			IsLoading: false,
			IsError:   true,
		}
	case RemoveItem:
		return State{
			Items:     removeStory(state.Items, a.ObjectID),
			IsLoading: state.IsLoading,
			IsError:   state.IsError,
		}
	default:
		panic(&UnknownActionError{Action: action})
	}
}

// copyStories はペイロードを複製する。nilは空スライスに正規化する。
func copyStories(items []model.Story) []model.Story {
	out := make([]model.Story, len(items))
	copy(out, items)
	return out
}

// removeStory はobjectIDが一致する項目を除いた新しいスライスを返す。
func removeStory(items []model.Story, objectID int) []model.Story {
	out := make([]model.Story, 0, len(items))
	for _, s := range items {
		if s.ObjectID != objectID {
			out = append(out, s)
		}
	}
	return out
}
