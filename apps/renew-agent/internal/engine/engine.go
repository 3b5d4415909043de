// Package engine は到着ページとスクリプト結果から更新セッションを進める。
//
// Engineはコーディネーターのイベントループからのみ呼び出される。Sessionの変更と
// レンダリング面への指示を行い、終了判定と結果の配布は呼び出し元が行う。
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/flow"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/metrics"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/scripts"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// センチネルエラー
var (
	// ErrDwellTimeout は同じ状態に滞留時間を超えて留まった場合のエラー
	ErrDwellTimeout = errors.New("no progress within dwell timeout")

	// ErrCancelled は呼び出し元がセッションを取り消した場合のエラー
	ErrCancelled = errors.New("cancelled by caller")

	// ErrRenewNotSubmitted は更新ボタンを押せなかった場合のエラー
	ErrRenewNotSubmitted = errors.New("renewal request could not be submitted")

	// ErrLoginNotSubmitted はログインフォームを送信できなかった場合のエラー
	ErrLoginNotSubmitted = errors.New("login form could not be submitted")
)

// StatusFunc は利用者向けの進捗表示を受け取る
type StatusFunc func(sessionID, status string)

// Engine は更新フローの判定を行う
type Engine struct {
	surface surface.Surface
	homeURL string
	cap     int
	status  StatusFunc
	fields  *logging.CommonFields
}

// New は新しいEngineを生成する。
func New(sf surface.Surface, cfg *config.Config, status StatusFunc) *Engine {
	if status == nil {
		status = func(string, string) {}
	}
	return &Engine{
		surface: sf,
		homeURL: cfg.HomeURL,
		cap:     cfg.UPassCap,
		status:  status,
		fields:  logging.NewCommonFields(logging.NewMasker(cfg.LogMaskUsername)),
	}
}

// HomeURL はトップページのURLを返す。
func (e *Engine) HomeURL() string {
	return e.homeURL
}

// Start はセッションを開始し、トップページを読み込む。
// 疎通断で一時停止中の場合は読み込みをResumeまで保留する。
func (e *Engine) Start(ctx context.Context, s *session.Session) {
	if _, err := s.Transition(flow.EventStart); err != nil {
		e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
		return
	}
	slog.Info("更新セッション開始",
		append(e.fields.SessionLogFields(s.ID, "SESSION_START", s.Account.Username),
			"origin", s.Origin,
			"school", s.Account.School.ShortName,
			"armed", s.Armed,
		)...,
	)
	if s.Suspended {
		e.status(s.ID, StatusOffline)
		return
	}
	e.status(s.ID, StatusConnecting)
	e.load(ctx, s)
}

// Arm は更新要求を受け付ける。トップページで待機中であれば直ちに進める。
func (e *Engine) Arm(ctx context.Context, s *session.Session) {
	if s.Terminal() || s.Armed {
		return
	}
	s.Armed = true
	slog.Info("更新要求を受け付けた",
		e.fields.SessionLogFields(s.ID, "SESSION_ARMED", s.Account.Username)...,
	)
	if !s.Ready || s.Suspended {
		return
	}
	s.Ready = false
	if last, ok := lastPage(s); ok {
		e.onArrival(ctx, s, last.Kind)
	}
}

// HandleEvent はレンダリング面からのイベントを処理する。
func (e *Engine) HandleEvent(ctx context.Context, s *session.Session, ev surface.Event) {
	if s.Terminal() {
		return
	}
	if s.Suspended {
		slog.Debug("一時停止中のイベントを破棄",
			"event_id", "EVENT_SUSPENDED",
			logging.WithSessionID(s.ID),
			"kind", ev.Kind,
		)
		return
	}

	switch ev.Kind {
	case surface.KindNavigation:
		e.onNavigation(ctx, s, ev)
	case surface.KindScript:
		e.onScript(ctx, s, ev)
	}
}

// Timeout は滞留時間超過でセッションを失敗させる。
func (e *Engine) Timeout(s *session.Session) {
	if s.Terminal() {
		return
	}
	e.fail(s, flow.EventDwellTimeout, renewerr.KindUnknown, fmt.Errorf("%w: state %s", ErrDwellTimeout, s.State))
}

// Cancel は呼び出し元の取り消しでセッションを失敗させる。
func (e *Engine) Cancel(s *session.Session) {
	if s.Terminal() {
		return
	}
	e.fail(s, flow.EventCancelled, renewerr.KindTransport, ErrCancelled)
}

// Suspend は疎通断でセッションを一時停止する。結果待ちのスクリプトは破棄する。
func (e *Engine) Suspend(s *session.Session) {
	if s.Terminal() || s.Suspended {
		return
	}
	s.Suspended = true
	s.Ready = false
	s.Awaiting = ""
	slog.Warn("疎通断によりセッションを一時停止",
		"event_id", "SESSION_SUSPENDED",
		logging.WithSessionID(s.ID),
		logging.WithState(string(s.State)),
	)
	e.status(s.ID, StatusOffline)
}

// Resume は疎通回復後にトップページから再開する。
// 取得済み枚数と更新送信済みフラグは保持する。
func (e *Engine) Resume(ctx context.Context, s *session.Session) {
	if s.Terminal() || !s.Suspended {
		return
	}
	s.Suspended = false
	if s.State != flow.StateConnecting {
		if _, err := s.Transition(flow.EventConnectivityRestored); err != nil {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
			return
		}
	}
	slog.Info("疎通回復によりセッションを再開",
		"event_id", "SESSION_RESUMED",
		logging.WithSessionID(s.ID),
		"renew_submitted", s.RenewSubmitted,
	)
	e.status(s.ID, StatusConnecting)
	e.load(ctx, s)
}

func (e *Engine) load(ctx context.Context, s *session.Session) {
	s.Epoch++
	if err := e.surface.Load(ctx, s.Token(), e.homeURL); err != nil {
		e.fail(s, flow.EventNavigationFailed, renewerr.KindTransport, fmt.Errorf("load home: %w", err))
	}
}

// onNavigation はページ到着を分類して処理する。
func (e *Engine) onNavigation(ctx context.Context, s *session.Session, ev surface.Event) {
	if ev.Outcome == surface.OutcomeFailed {
		s.RecordPage(ev.URL, flow.PageUnknown, ev.Outcome)
		metrics.RecordPage(string(flow.PageUnknown), string(ev.Outcome))
		e.fail(s, flow.EventNavigationFailed, renewerr.KindTransport, ev.Err)
		return
	}

	kind := flow.Classify(ev.URL, e.homeURL, s.Account.School)
	s.RecordPage(ev.URL, kind, ev.Outcome)
	metrics.RecordPage(string(kind), string(ev.Outcome))
	slog.Debug("ページ到着",
		"event_id", "PAGE_ARRIVED",
		logging.WithSessionID(s.ID),
		logging.WithState(string(s.State)),
		logging.WithURL(ev.URL),
		"page_kind", kind,
	)
	e.onArrival(ctx, s, kind)
}

// onArrival は分類済みのページ到着から次の操作を決める。
func (e *Engine) onArrival(ctx context.Context, s *session.Session, kind flow.PageKind) {
	switch kind {
	case flow.PageHome:
		if s.State != flow.StateConnecting {
			e.ignore(s, kind)
			return
		}
		if !s.Armed {
			e.markReady(s)
			return
		}
		if e.advance(s, flow.EventSelectSchool) {
			e.execute(ctx, s, scripts.SelectSchool(s.Account.School), StatusSelectingSchool)
		}

	case flow.PageAuth:
		switch s.State {
		case flow.StateConnecting, flow.StateAwaitingSchoolSelection:
			if !s.Armed {
				e.markReady(s)
				return
			}
			if e.advance(s, flow.EventAuthPageArrived) {
				a := s.Account
				e.execute(ctx, s, scripts.Authenticate(a.School, a.Username, a.Password), StatusSigningIn)
			}
		case flow.StateAuthenticating:
			// ログイン送信後に再びログインページへ戻った
			e.fail(s, flow.EventAuthRejected, renewerr.KindAuthenticationFailed, nil)
		default:
			e.ignore(s, kind)
		}

	case flow.PagePostAuth:
		switch s.State {
		case flow.StateConnecting, flow.StateAwaitingSchoolSelection, flow.StateAuthenticating:
			if !s.Armed {
				e.markReady(s)
				return
			}
			e.afterAuth(ctx, s)
		case flow.StateRenewing:
			if !s.RenewSubmitted {
				e.ignore(s, kind)
				return
			}
			if e.advance(s, flow.EventVerify) {
				e.execute(ctx, s, scripts.VerifyRenewal(), StatusVerifying)
			}
		default:
			e.ignore(s, kind)
		}

	default:
		// 中間ページでは次の到着を待つ
	}
}

// afterAuth は認証後ページ到着時に、セッションの進み具合に応じた操作を選ぶ。
func (e *Engine) afterAuth(ctx context.Context, s *session.Session) {
	switch {
	case s.NumUpassSeen == nil:
		if e.advance(s, flow.EventPostAuthArrived) {
			e.execute(ctx, s, scripts.CheckPassCount(), StatusCheckingPass)
		}
	case s.RenewSubmitted:
		if e.advance(s, flow.EventVerify) {
			e.execute(ctx, s, scripts.VerifyRenewal(), StatusVerifying)
		}
	default:
		if e.advance(s, flow.EventRenewResumed) {
			e.execute(ctx, s, scripts.Renew(), StatusRequesting)
		}
	}
}

// onScript は結果待ちのスクリプト結果を処理する。
func (e *Engine) onScript(ctx context.Context, s *session.Session, ev surface.Event) {
	if ev.Action == "" || ev.Action != s.Awaiting {
		slog.Debug("結果待ちでないスクリプト結果を破棄",
			"event_id", "SCRIPT_RESULT_IGNORED",
			logging.WithSessionID(s.ID),
			"action", ev.Action,
			"awaiting", s.Awaiting,
		)
		return
	}
	s.Awaiting = ""

	if ev.Err != nil {
		e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, fmt.Errorf("%s: %w", ev.Action, ev.Err))
		return
	}

	switch ev.Action {
	case scripts.ActionSelectSchool:
		ok, err := scripts.ParseBool(ev.Value)
		if err != nil {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
			return
		}
		if !ok {
			e.fail(s, flow.EventSchoolNotFound, renewerr.KindSchoolNotRecognized, nil)
		}

	case scripts.ActionAuthenticate:
		ok, err := scripts.ParseBool(ev.Value)
		if err != nil {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
			return
		}
		if !ok {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, ErrLoginNotSubmitted)
		}

	case scripts.ActionCheckPassCount:
		n, err := scripts.ParseCount(ev.Value)
		if err != nil {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
			return
		}
		if err := s.SetNumUpassSeen(n); err != nil {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
			return
		}
		if n >= e.cap {
			if e.advance(s, flow.EventPassCountAtCap) {
				e.finish(s, renewerr.FailureOf(renewerr.KindAlreadyHasLatestUPass, nil))
			}
			return
		}
		if e.advance(s, flow.EventPassCountBelowCap) {
			e.execute(ctx, s, scripts.Renew(), StatusRequesting)
		}

	case scripts.ActionRenew:
		ok, err := scripts.ParseBool(ev.Value)
		if err != nil {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
			return
		}
		if !ok {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, ErrRenewNotSubmitted)
			return
		}
		s.RenewSubmitted = true

	case scripts.ActionVerifyRenewal:
		n, err := scripts.ParseCount(ev.Value)
		if err != nil {
			e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, err)
			return
		}
		seen := 0
		if s.NumUpassSeen != nil {
			seen = *s.NumUpassSeen
		}
		if n > seen {
			if e.advance(s, flow.EventVerified) {
				e.finish(s, renewerr.Success())
			}
			return
		}
		e.fail(s, flow.EventNotVerified, renewerr.KindVerificationFailed,
			fmt.Errorf("pass count %d after renewal, %d before", n, seen))
	}
}

// advance は状態遷移を行う。遷移表にない場合はセッションを失敗させてfalseを返す。
func (e *Engine) advance(s *session.Session, ev flow.Event) bool {
	from := s.State
	if _, err := s.Transition(ev); err != nil {
		slog.Error("無効な状態遷移",
			"event_id", "INVALID_TRANSITION",
			logging.WithSessionID(s.ID),
			logging.WithState(string(from)),
			"transition", ev,
		)
		s.ForceFail()
		e.finish(s, renewerr.FailureOf(renewerr.KindUnknown, fmt.Errorf("%w: %s on %s", err, ev, from)))
		return false
	}
	slog.Debug("状態遷移",
		"event_id", "STATE_TRANSITION",
		logging.WithSessionID(s.ID),
		"from", from,
		"to", s.State,
		"transition", ev,
	)
	return true
}

// execute は結果待ちのスクリプトを記録して実行を依頼する。
func (e *Engine) execute(ctx context.Context, s *session.Session, script scripts.Script, status string) {
	s.Awaiting = script.Action
	e.status(s.ID, status)
	if err := e.surface.Execute(ctx, s.Token(), script); err != nil {
		e.fail(s, flow.EventScriptFailed, renewerr.KindUnknown, fmt.Errorf("%s: %w", script.Action, err))
	}
}

// fail は失敗イベントで遷移し、失敗結果を記録する。
func (e *Engine) fail(s *session.Session, ev flow.Event, kind renewerr.Kind, cause error) {
	if s.Terminal() {
		return
	}
	if _, err := s.Transition(ev); err != nil {
		s.ForceFail()
	}
	e.finish(s, renewerr.FailureOf(kind, cause))
}

// finish は最終結果を記録して表示を更新する。
func (e *Engine) finish(s *session.Session, o renewerr.Outcome) {
	s.Finish(o)
	e.status(s.ID, o.Title())

	level, eventID, msg := slog.LevelWarn, "RENEW_FAILED", "UPass更新失敗"
	switch {
	case o.Succeeded():
		level, eventID, msg = slog.LevelInfo, "RENEW_SUCCESS", "UPass更新成功"
	case o.Settled():
		level, eventID, msg = slog.LevelInfo, "RENEW_ALREADY_LATEST", "最新のUPassは取得済み"
	}
	fields := append(e.fields.SessionLogFields(s.ID, eventID, s.Account.Username),
		logging.WithState(string(s.State)),
		"outcome", o.Label(),
		"school", s.Account.School.ShortName,
	)
	if !o.Settled() {
		fields = append(fields, logging.WithError(o.Err))
	}
	slog.Log(context.Background(), level, msg, fields...)
}

func (e *Engine) markReady(s *session.Session) {
	if s.Ready {
		return
	}
	s.Ready = true
	slog.Info("更新要求待ち",
		"event_id", "SESSION_READY",
		logging.WithSessionID(s.ID),
		logging.WithState(string(s.State)),
	)
	e.status(s.ID, StatusReady)
}

func (e *Engine) ignore(s *session.Session, kind flow.PageKind) {
	slog.Debug("状態に合わないページ到着を無視",
		"event_id", "PAGE_IGNORED",
		logging.WithSessionID(s.ID),
		logging.WithState(string(s.State)),
		"page_kind", kind,
	)
}

// lastPage は最後に読み込みが完了した分類済みページを返す。
func lastPage(s *session.Session) (session.Page, bool) {
	for i := len(s.Pages) - 1; i >= 0; i-- {
		p := s.Pages[i]
		if p.Outcome == surface.OutcomeLoaded && p.Kind != flow.PageUnknown {
			return p, true
		}
	}
	return session.Page{}, false
}
