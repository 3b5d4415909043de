// Package coordinator は更新セッションのライフサイクルを管理する。
//
// 全ての要求・面イベント・疎通変化・滞留タイマーは単一のイベントループで
// 直列に処理する。実行中のセッションは同時に1つまでで、ループのみが所有する。
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/completion"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/engine"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/flow"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
)

// センチネルエラー
var (
	// ErrStopped はイベントループ停止後に要求した場合のエラー
	ErrStopped = errors.New("coordinator stopped")

	// ErrShutdown は停止時に未解決だった要求に返す原因
	ErrShutdown = errors.New("agent shutting down")
)

// Connectivity は疎通状態の通知元
type Connectivity interface {
	Events() <-chan bool
	Reachable() bool
}

// Coordinator は更新セッションの調停を行う
type Coordinator struct {
	cfg      *config.Config
	surface  surface.Surface
	accounts credential.Provider
	sessions store.SessionStore
	conn     Connectivity
	engine   *engine.Engine
	now      func() time.Time

	inbox chan event
	done  chan struct{}

	// 以下はイベントループのみが参照する
	active    *session.Session
	span      trace.Span
	lastState flow.State
	registry  *completion.Registry
	timer     *time.Timer
	timerKey  dwellTimeout
	reachable bool

	mu          sync.Mutex
	subscribers map[int]chan string
	nextSub     int
	lastStatus  string
}

// New は新しいCoordinatorを生成する。connがnilの場合は常に到達可能とみなす。
func New(cfg *config.Config, sf surface.Surface, accounts credential.Provider, sessions store.SessionStore, conn Connectivity) *Coordinator {
	c := &Coordinator{
		cfg:         cfg,
		surface:     sf,
		accounts:    accounts,
		sessions:    sessions,
		conn:        conn,
		now:         time.Now,
		inbox:       make(chan event, config.StatusBufferSize),
		done:        make(chan struct{}),
		registry:    completion.NewRegistry(),
		reachable:   conn == nil || conn.Reachable(),
		subscribers: make(map[int]chan string),
	}
	c.engine = engine.New(sf, cfg, c.broadcast)
	return c
}

// Renew はフォアグラウンドの更新を要求し、結果を待つ。
func (c *Coordinator) Renew(ctx context.Context) (renewerr.Outcome, error) {
	return c.renew(ctx, session.OriginForeground)
}

// RenewInBackground はバックグラウンドの更新を要求し、結果を待つ。
func (c *Coordinator) RenewInBackground(ctx context.Context) (renewerr.Outcome, error) {
	return c.renew(ctx, session.OriginBackground)
}

func (c *Coordinator) renew(ctx context.Context, origin session.Origin) (renewerr.Outcome, error) {
	reply := make(chan (<-chan renewerr.Outcome), 1)
	if err := c.post(ctx, renewRequest{origin: origin, reply: reply}); err != nil {
		return renewerr.Outcome{}, err
	}

	var result <-chan renewerr.Outcome
	select {
	case result = <-reply:
	case <-ctx.Done():
		return renewerr.Outcome{}, ctx.Err()
	case <-c.done:
		return renewerr.Outcome{}, ErrStopped
	}

	select {
	case o := <-result:
		return o, nil
	case <-ctx.Done():
		return renewerr.Outcome{}, ctx.Err()
	case <-c.done:
		// 停止時に解決済みであればその結果を返す
		select {
		case o := <-result:
			return o, nil
		default:
			return renewerr.Outcome{}, ErrStopped
		}
	}
}

// Prepare は更新要求前にトップページを読み込んでおく。
// アカウント未登録の場合はcredentialMissingErrorを返す。
func (c *Coordinator) Prepare(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := c.post(ctx, prepareRequest{reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// Cancel は実行中のセッションを取り消す。セッションがなければfalseを返す。
func (c *Coordinator) Cancel(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	if err := c.post(ctx, cancelRequest{reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.done:
		return false, ErrStopped
	}
}

// Active は実行中セッションのスナップショットを返す。
func (c *Coordinator) Active(ctx context.Context) (session.Snapshot, bool, error) {
	reply := make(chan snapshotReply, 1)
	if err := c.post(ctx, snapshotRequest{reply: reply}); err != nil {
		return session.Snapshot{}, false, err
	}
	select {
	case r := <-reply:
		return r.snapshot, r.ok, nil
	case <-ctx.Done():
		return session.Snapshot{}, false, ctx.Err()
	case <-c.done:
		return session.Snapshot{}, false, ErrStopped
	}
}

// Subscribe は進捗表示を受け取るチャネルと解除関数を返す。
// 直近の表示があれば最初に届ける。受信が遅い購読者への表示は破棄する。
func (c *Coordinator) Subscribe() (<-chan string, func()) {
	ch := make(chan string, config.StatusBufferSize)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	if c.lastStatus != "" {
		ch <- c.lastStatus
	}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(ch)
			}
		})
	}
}

// Done はイベントループ終了時に閉じられるチャネルを返す。
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// broadcast は進捗表示を全購読者に送る。
func (c *Coordinator) broadcast(_ string, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStatus = status
	for _, ch := range c.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
}

func (c *Coordinator) closeSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

// post はイベントループに要求を渡す。
func (c *Coordinator) post(ctx context.Context, ev event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.inbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}
