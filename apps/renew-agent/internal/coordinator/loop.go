package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/metrics"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/tracing"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// Run はctxがキャンセルされるまでイベントループを実行する。
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)

	var connEvents <-chan bool
	if c.conn != nil {
		connEvents = c.conn.Events()
	}
	surfaceEvents := c.surface.Events()

	slog.Info("コーディネーター開始",
		"event_id", "COORDINATOR_START",
		"reachable", c.reachable,
	)
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case ev := <-c.inbox:
			c.handle(ctx, ev)
		case sev := <-surfaceEvents:
			c.onSurface(ctx, sev)
		case up := <-connEvents:
			c.onConnectivity(ctx, up)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case renewRequest:
		e.reply <- c.onRenew(ctx, e.origin)
	case prepareRequest:
		e.reply <- c.prepare(ctx)
	case cancelRequest:
		e.reply <- c.onCancel()
	case snapshotRequest:
		if c.active == nil {
			e.reply <- snapshotReply{}
			return
		}
		e.reply <- snapshotReply{snapshot: c.active.Snapshot(), ok: true}
	case dwellTimeout:
		c.onDwellTimeout(e)
	}
}

// onRenew は更新要求を処理し、結果を受け取るチャネルを返す。
func (c *Coordinator) onRenew(ctx context.Context, origin session.Origin) <-chan renewerr.Outcome {
	if s := c.active; s != nil {
		if s.Armed {
			// 実行中のセッションに合流させ、2つ目のセッションは開始しない
			ch := c.registry.Attach()
			slog.Info("実行中のセッションに合流",
				"event_id", "RENEW_ATTACHED",
				logging.WithSessionID(s.ID),
				logging.WithState(string(s.State)),
				"origin", origin,
			)
			metrics.SetPending(c.registry.Len())
			return ch
		}
		ch := c.registry.Register()
		metrics.SetPending(c.registry.Len())
		c.engine.Arm(ctx, s)
		c.afterStep()
		return ch
	}

	account, err := c.loadAccount(ctx)
	if err != nil {
		return resolved(renewerr.Failure(renewerr.From(err)))
	}

	ch := c.registry.Register()
	metrics.SetPending(c.registry.Len())
	s := session.New(origin, account, c.now)
	s.Armed = true
	c.begin(ctx, s)
	return ch
}

// prepare はフォアグラウンドの未要求セッションを開始する。
func (c *Coordinator) prepare(ctx context.Context) error {
	if c.active != nil {
		return nil
	}
	account, err := c.loadAccount(ctx)
	if err != nil {
		return err
	}
	c.begin(ctx, session.New(session.OriginForeground, account, c.now))
	return nil
}

func (c *Coordinator) onCancel() bool {
	if c.active == nil {
		slog.Info("取り消すセッションがない",
			"event_id", "CANCEL_NO_SESSION",
		)
		return false
	}
	c.engine.Cancel(c.active)
	c.afterStep()
	return true
}

func (c *Coordinator) onSurface(ctx context.Context, ev surface.Event) {
	if c.active == nil {
		slog.Debug("セッションがないため面イベントを破棄",
			"event_id", "SURFACE_EVENT_DROPPED",
			"kind", ev.Kind,
		)
		return
	}
	if ev.Token != c.active.Token() {
		// 終了したセッションや再開前の読み込みに対するイベント
		slog.Debug("他の読み込みに対する面イベントを破棄",
			"event_id", "SURFACE_EVENT_STALE",
			logging.WithSessionID(c.active.ID),
			"kind", ev.Kind,
			"event_session", ev.Token.Session,
			"event_epoch", ev.Token.Epoch,
			"epoch", c.active.Epoch,
		)
		return
	}
	c.engine.HandleEvent(ctx, c.active, ev)
	c.afterStep()
}

func (c *Coordinator) onConnectivity(ctx context.Context, up bool) {
	c.reachable = up
	if c.active == nil {
		return
	}
	if up {
		c.engine.Resume(ctx, c.active)
	} else {
		c.engine.Suspend(c.active)
	}
	c.afterStep()
}

func (c *Coordinator) onDwellTimeout(t dwellTimeout) {
	s := c.active
	if s == nil || t.sessionID != s.ID || t.generation != s.Generation || s.Ready || s.Suspended {
		return
	}
	slog.Warn("滞留時間を超過",
		"event_id", "DWELL_TIMEOUT",
		logging.WithSessionID(s.ID),
		logging.WithState(string(s.State)),
	)
	c.timer = nil
	c.engine.Timeout(s)
	c.afterStep()
}

// loadAccount はアカウントを取得する。未登録・破損はcredentialMissingErrorに変換する。
func (c *Coordinator) loadAccount(ctx context.Context) (credential.Account, error) {
	lctx, cancel := context.WithTimeout(ctx, config.CredentialTimeout)
	defer cancel()

	account, err := c.accounts.Load(lctx)
	if err == nil {
		return account, nil
	}
	slog.Warn("アカウント取得失敗",
		"event_id", "ACCOUNT_LOAD_ERR",
		logging.WithError(err),
	)
	if errors.Is(err, credential.ErrNotFound) || errors.Is(err, credential.ErrCorrupted) {
		return credential.Account{}, renewerr.New(renewerr.KindCredentialMissing, err)
	}
	return credential.Account{}, renewerr.New(renewerr.KindUnknown, err)
}

// begin はセッションを実行中にして開始する。
func (c *Coordinator) begin(ctx context.Context, s *session.Session) {
	c.active = s
	s.Suspended = !c.reachable
	_, c.span = tracing.StartSession(context.Background(), s.ID, string(s.Origin))
	c.lastState = s.State
	metrics.SetActive(true)

	c.engine.Start(ctx, s)
	c.afterStep()
}

// afterStep はEngine呼び出し後に終了判定と滞留タイマーの更新を行う。
func (c *Coordinator) afterStep() {
	s := c.active
	if s == nil {
		return
	}
	if s.State != c.lastState {
		tracing.AddEvent(c.span, "state", attribute.String("state", string(s.State)))
		c.lastState = s.State
	}
	if s.Terminal() {
		c.complete(s)
		return
	}
	c.armDwell(s)
}

// armDwell は状態が変わった場合に滞留タイマーを張り直す。
// 更新要求待ちと一時停止中はタイマーを止める。
func (c *Coordinator) armDwell(s *session.Session) {
	if s.Ready || s.Suspended {
		c.stopTimer()
		return
	}
	key := dwellTimeout{sessionID: s.ID, generation: s.Generation}
	if c.timer != nil && c.timerKey == key {
		return
	}
	c.stopTimer()
	c.timerKey = key
	c.timer = time.AfterFunc(c.cfg.DwellTimeout, func() {
		select {
		case c.inbox <- key:
		case <-c.done:
		}
	})
}

func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// complete は終了したセッションを記録し、待っている要求を解決する。
func (c *Coordinator) complete(s *session.Session) {
	c.stopTimer()
	c.active = nil
	metrics.SetActive(false)

	o := renewerr.FailureOf(renewerr.KindUnknown, nil)
	if s.Outcome != nil {
		o = *s.Outcome
	}
	metrics.RecordSession(string(s.Origin), o.Label(), s.UpdatedAt.Sub(s.StartedAt))

	sctx, cancel := context.WithTimeout(context.Background(), config.ValkeyCommandTimeout)
	if err := c.sessions.Save(sctx, s.Record()); err != nil {
		slog.Warn("セッション記録の保存失敗",
			"event_id", "SESSION_SAVE_ERR",
			logging.WithSessionID(s.ID),
			logging.WithError(err),
		)
	}
	cancel()

	c.endSpan(s, o)

	if s.Armed {
		c.registry.ResolveOldest(o)
		metrics.SetPending(c.registry.Len())
	}

	slog.Info("セッション終了",
		"event_id", "SESSION_END",
		logging.WithSessionID(s.ID),
		logging.WithState(string(s.State)),
		"outcome", o.Label(),
		"pages", len(s.Pages),
	)

	// 更新後はトップページを読み直し、次の要求に備える
	if s.Armed && c.cfg.ReloadAfterTerminal {
		if err := c.prepare(context.Background()); err != nil {
			slog.Info("再読み込みを見送った",
				"event_id", "RELOAD_SKIPPED",
				logging.WithError(err),
			)
		}
	}
}

func (c *Coordinator) endSpan(s *session.Session, o renewerr.Outcome) {
	if c.span == nil {
		return
	}
	c.span.SetAttributes(
		attribute.String("session.state", string(s.State)),
		attribute.String("session.outcome", o.Label()),
		attribute.String("session.school", s.Account.School.ShortName),
	)
	if !o.Settled() {
		c.span.RecordError(o.Err)
		c.span.SetStatus(codes.Error, o.Label())
	}
	c.span.End()
	c.span = nil
}

// shutdown は未解決の要求を全て失敗で解決する。
func (c *Coordinator) shutdown() {
	c.stopTimer()
	o := renewerr.FailureOf(renewerr.KindTransport, ErrShutdown)
	if s := c.active; s != nil {
		c.endSpan(s, o)
		c.active = nil
	}
	if n := c.registry.ResolveAll(o); n > 0 {
		slog.Warn("停止により未解決の要求を失敗とした",
			"event_id", "COORDINATOR_SHUTDOWN",
			"pending", n,
		)
	}
	metrics.SetActive(false)
	metrics.SetPending(0)
	c.closeSubscribers()
	slog.Info("コーディネーター停止", "event_id", "COORDINATOR_STOP")
}

// resolved は結果が確定済みのチャネルを返す。
func resolved(o renewerr.Outcome) <-chan renewerr.Outcome {
	ch := make(chan renewerr.Outcome, 1)
	ch <- o
	return ch
}
