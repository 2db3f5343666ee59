package view

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped はビューが停止済みであることを示す。
var ErrStopped = errors.New("view: stopped")

// Loop は関数を単一の制御ゴルーチン上で順番に実行するイベントループ。
// ユーザー操作とフェッチ完了の両方がこのゴルーチンで直列化される。
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// NewLoop は新しいLoopを生成する。Runを呼ぶまでタスクは実行されない。
func NewLoop(buffer int) *Loop {
	return &Loop{
		tasks:    make(chan func(), buffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Run はStopが呼ばれるまでタスクを実行し続ける。
func (l *Loop) Run() {
	defer close(l.finished)
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post はfnを制御ゴルーチンのキューに積む。
// 停止済みの場合はfalseを返す。停止と競合して積まれたタスクは実行されずに破棄される。
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- fn:
		return true
	}
}

// Do はfnを制御ゴルーチン上で実行し、完了を待つ。
// ctxが先に終了した場合、fnは後から実行されうる。
func (l *Loop) Do(ctx context.Context, fn func()) error {
	completed := make(chan struct{})
	if !l.Post(func() {
		defer close(completed)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-completed:
		return nil
	case <-l.finished:
		// 停止直前に実行を終えていた場合は成功とみなす
		select {
		case <-completed:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop はループに停止を通知する。複数回呼んでもよい。
// 実行中のタスクの完了を待つにはWaitを使う。
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Wait はRunが終了するまで待つ。
func (l *Loop) Wait() {
	<-l.finished
}
