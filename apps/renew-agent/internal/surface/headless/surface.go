// Package headless はHTTPクライアントとJavaScriptインタプリタで構成するレンダリング面を提供する。
//
// ページはresty（Cookie Jar付き）で取得しgoqueryで保持する。注入スクリプトは
// goja上でpageバインディング経由のDOM操作として実行し、click/submitが
// 発生した場合はスクリプト結果の通知後にフォーム送信を行う。
package headless

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/scripts"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// maxAutoSubmit はonload送信ページを連続で辿る上限
const maxAutoSubmit = 5

// Surface はヘッドレスのレンダリング面
type Surface struct {
	client        *resty.Client
	cb            *gobreaker.CircuitBreaker
	scriptTimeout time.Duration

	ops    chan func()
	events chan surface.Event

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// 以下はworkerゴルーチンのみが参照する
	doc     *goquery.Document
	current *url.URL
}

// New は新しいヘッドレス面を生成し、workerを起動する。
func New() *Surface {
	jar, _ := cookiejar.New(nil)

	client := resty.New().
		SetTimeout(config.SiteRequestTimeout).
		SetCookieJar(jar).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(config.SiteMaxRedirects)).
		SetHeader("User-Agent", config.UserAgent)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Surface{
		client:        client,
		cb:            gobreaker.NewCircuitBreaker(breakerSettings()),
		scriptTimeout: config.ScriptTimeout,
		ops:           make(chan func(), config.SurfaceQueueSize),
		events:        make(chan surface.Event, config.SurfaceQueueSize*2),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go s.run()
	return s
}

func breakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        config.CBName,
		MaxRequests: config.CBMaxRequests,
		Interval:    config.CBInterval,
		Timeout:     config.CBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.CBFailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				slog.Warn("サーキットブレーカーがOpenになった",
					"event_id", "CB_OPEN",
					"cb_name", name,
				)
			case gobreaker.StateHalfOpen:
				slog.Info("サーキットブレーカーがHalf-Openになった",
					"event_id", "CB_HALF_OPEN",
					"cb_name", name,
				)
			case gobreaker.StateClosed:
				slog.Info("サーキットブレーカーがClosedになった",
					"event_id", "CB_CLOSE",
					"cb_name", name,
				)
			}
		},
	}
}

// Load はURLの読み込みを要求する。結果はtokを付けたナビゲーションイベントで通知される。
func (s *Surface) Load(ctx context.Context, tok surface.Token, rawURL string) error {
	return s.enqueue(ctx, func() {
		s.navigate(tok, request{method: http.MethodGet, url: rawURL})
	})
}

// Execute は現在のページでスクリプトを実行する。結果はtokを付けたスクリプトイベントで通知される。
// スクリプトが起こしたフォーム送信の到着も同じtokで通知する。
func (s *Surface) Execute(ctx context.Context, tok surface.Token, script scripts.Script) error {
	return s.enqueue(ctx, func() {
		s.execute(tok, script)
	})
}

// Events はイベントチャネルを返す。
func (s *Surface) Events() <-chan surface.Event {
	return s.events
}

// Close はworkerを停止する。実行中のリクエストは中断される。
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *Surface) enqueue(ctx context.Context, op func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.ctx.Done():
		return surface.ErrClosed
	default:
	}
	select {
	case s.ops <- op:
		return nil
	default:
		return surface.ErrBusy
	}
}

func (s *Surface) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.ops:
			op()
		}
	}
}

func (s *Surface) emit(ev surface.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// navigate はリクエストを送信し、onload送信ページであれば続けて辿る。
func (s *Surface) navigate(tok surface.Token, req request) {
	for hop := 0; ; hop++ {
		start := time.Now()
		final, doc, err := s.fetch(req)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.Warn("ページ読み込み失敗",
				"event_id", "PAGE_LOAD_ERR",
				logging.WithURL(req.url),
				logging.WithError(err),
			)
			s.emit(surface.Failed(req.url, err).For(tok))
			return
		}
		s.doc, s.current = doc, final
		slog.Debug("ページ読み込み完了",
			"event_id", "PAGE_LOADED",
			logging.WithURL(final.String()),
			logging.WithLatency(time.Since(start).Milliseconds()),
		)
		s.emit(surface.Loaded(final.String()).For(tok))

		next, ok := autoSubmitRequest(doc, final)
		if !ok || hop >= maxAutoSubmit {
			return
		}
		req = next
	}
}

// fetch はCircuit Breaker経由でリクエストを送信し、最終URLと文書を返す。
func (s *Surface) fetch(req request) (*url.URL, *goquery.Document, error) {
	result, err := s.cb.Execute(func() (any, error) {
		r := s.client.R().SetContext(s.ctx)

		var resp *resty.Response
		var err error
		if req.method == http.MethodPost {
			resp, err = r.SetFormDataFromValues(req.form).Post(req.url)
		} else {
			if len(req.form) > 0 {
				r.SetQueryParamsFromValues(req.form)
			}
			resp, err = r.Get(req.url)
		}
		if err != nil {
			return nil, &ConnectionError{Cause: err}
		}

		// CB失敗判定対象: 5xx
		if resp.StatusCode() >= 500 {
			return nil, &StatusError{StatusCode: resp.StatusCode(), URL: req.url}
		}
		// CB失敗判定対象外のエラー: 4xx
		if resp.StatusCode() >= 400 {
			return &StatusError{StatusCode: resp.StatusCode(), URL: req.url}, nil
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, ErrCircuitOpen
		}
		return nil, nil, err
	}

	if statusErr, ok := result.(*StatusError); ok {
		return nil, nil, statusErr
	}

	resp := result.(*resty.Response)
	final := resp.Request.RawRequest.URL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, nil, err
	}
	return final, doc, nil
}

func (s *Surface) execute(tok surface.Token, script scripts.Script) {
	if s.doc == nil {
		s.emit(surface.ScriptResult(script.Action, nil, surface.ErrNoPage).For(tok))
		return
	}

	p := newPage(s.doc, s.current)
	value, err := p.run(script.Source, s.scriptTimeout)
	if err != nil {
		slog.Warn("スクリプト実行失敗",
			"event_id", "SCRIPT_ERR",
			"action", script.String(),
			logging.WithError(err),
		)
	}
	s.emit(surface.ScriptResult(script.Action, value, err).For(tok))

	if err == nil && p.pending != nil {
		s.navigate(tok, *p.pending)
	}
}
