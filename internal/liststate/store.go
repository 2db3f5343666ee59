package liststate

// Listener はディスパッチ後に呼び出されるコールバック。
type Listener func(action Action, prev, next State)

// Store は現在の状態を保持し、Dispatchのみで更新する。
// 単一の制御ゴルーチンからのみ呼び出すこと（ロックは持たない）。
type Store struct {
	state     State
	listeners []Listener
}

// NewStore は初期状態のStoreを生成する。
func NewStore() *Store {
	return &Store{state: InitialState()}
}

// Dispatch はアクションをリデューサに適用し、登録済みリスナーへ通知する。
func (s *Store) Dispatch(action Action) {
	prev := s.state
	s.state = Reduce(prev, action)
	for _, l := range s.listeners {
		l(action, prev, s.state)
	}
}

// State は現在の状態を返す。
func (s *Store) State() State {
	return s.state
}

// Subscribe はディスパッチごとに呼び出されるリスナーを登録する。
func (s *Store) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}
