// Package chrome はChrome DevTools Protocol経由で実ブラウザを操作するレンダリング面を提供する。
package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/scripts"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// センチネルエラー
var (
	// ErrScriptException はスクリプト内で例外が発生した場合のエラー
	ErrScriptException = errors.New("script exception")

	// ErrNavigation はドキュメントの読み込みに失敗した場合のエラー
	ErrNavigation = errors.New("navigation failed")
)

const errorPagePrefix = "chrome-error://"

// Surface はChromeのタブ1つを使うレンダリング面
type Surface struct {
	tabCtx        context.Context
	closeBrowser  func()
	mainFrame     cdp.FrameID
	scriptTimeout time.Duration

	ops    chan func()
	events chan surface.Event

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	// token は直近のLoad/Executeの依頼元。ブラウザ発のイベントにはこれを付ける
	token     surface.Token
	url       string
	errorPage bool
	requests  map[network.RequestID]string
}

// New はChromeに接続してタブを開く。wsURLが空の場合はローカルのChromeを起動する。
func New(ctx context.Context, wsURL string) (*Surface, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if wsURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), wsURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(config.UserAgent))
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	closeBrowser := func() {
		cancelTab()
		cancelAlloc()
	}

	var mainFrame cdp.FrameID
	start := chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return err
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		mainFrame = tree.Frame.ID
		return nil
	})

	startCtx, cancelStart := context.WithTimeout(ctx, config.SiteRequestTimeout)
	defer cancelStart()
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(tabCtx, start) }()
	select {
	case err := <-errCh:
		if err != nil {
			closeBrowser()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-startCtx.Done():
		closeBrowser()
		return nil, fmt.Errorf("start chrome: %w", startCtx.Err())
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Surface{
		tabCtx:        tabCtx,
		closeBrowser:  closeBrowser,
		mainFrame:     mainFrame,
		scriptTimeout: config.ScriptTimeout,
		ops:           make(chan func(), config.SurfaceQueueSize),
		events:        make(chan surface.Event, config.SurfaceQueueSize*2),
		ctx:           sctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		requests:      make(map[network.RequestID]string),
	}
	chromedp.ListenTarget(tabCtx, s.listen)
	go s.run()

	slog.Info("Chromeに接続した",
		"event_id", "SURFACE_CHROME_READY",
		"remote", wsURL != "",
	)
	return s, nil
}

// Load はURLへの遷移を要求する。結果はtokを付けたナビゲーションイベントで通知される。
func (s *Surface) Load(ctx context.Context, tok surface.Token, rawURL string) error {
	return s.enqueue(ctx, func() {
		s.setToken(tok)
		target, _ := json.Marshal(rawURL)
		err := s.evaluate("location.href = "+string(target)+";", nil)
		if err != nil {
			s.emit(surface.Failed(rawURL, err).For(tok))
		}
	})
}

// Execute は現在のページでスクリプトを実行する。結果はtokを付けたスクリプトイベントで通知される。
func (s *Surface) Execute(ctx context.Context, tok surface.Token, script scripts.Script) error {
	return s.enqueue(ctx, func() {
		s.setToken(tok)
		var raw string
		err := s.evaluate(wrap(script.Source), &raw)
		if err != nil {
			slog.Warn("スクリプト実行失敗",
				"event_id", "SCRIPT_ERR",
				"action", script.String(),
				logging.WithError(err),
			)
			s.emit(surface.ScriptResult(script.Action, nil, err).For(tok))
			return
		}
		value, err := decode(raw)
		s.emit(surface.ScriptResult(script.Action, value, err).For(tok))
	})
}

// Events はイベントチャネルを返す。
func (s *Surface) Events() <-chan surface.Event {
	return s.events
}

// Close はタブを閉じ、起動したブラウザを終了する。
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.closeBrowser()
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

func (s *Surface) setToken(tok surface.Token) {
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
}

func (s *Surface) evaluate(expr string, res any) error {
	ctx, cancel := context.WithTimeout(s.tabCtx, s.scriptTimeout)
	defer cancel()
	err := chromedp.Run(ctx, chromedp.Evaluate(expr, res))
	if err == nil {
		return nil
	}
	var ex *runtime.ExceptionDetails
	if errors.As(err, &ex) {
		return fmt.Errorf("%w: %s", ErrScriptException, ex.Error())
	}
	return err
}

// listen はメインフレームのナビゲーションイベントを面のイベントに変換する。
func (s *Surface) listen(ev any) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		s.mu.Lock()
		s.url = e.Frame.URL + e.Frame.URLFragment
		s.errorPage = strings.HasPrefix(e.Frame.URL, errorPagePrefix)
		s.mu.Unlock()

	case *page.EventLoadEventFired:
		s.mu.Lock()
		current, errorPage, tok := s.url, s.errorPage, s.token
		s.mu.Unlock()
		if errorPage || current == "" || current == "about:blank" {
			return
		}
		slog.Debug("ページ読み込み完了",
			"event_id", "PAGE_LOADED",
			logging.WithURL(current),
		)
		s.emit(surface.Loaded(current).For(tok))

	case *network.EventRequestWillBeSent:
		if e.Type != network.ResourceTypeDocument || e.FrameID != s.mainFrame || e.Request == nil {
			return
		}
		s.mu.Lock()
		s.requests[e.RequestID] = e.Request.URL
		s.mu.Unlock()

	case *network.EventLoadingFinished:
		s.mu.Lock()
		delete(s.requests, e.RequestID)
		s.mu.Unlock()

	case *network.EventLoadingFailed:
		s.mu.Lock()
		target, ok := s.requests[e.RequestID]
		delete(s.requests, e.RequestID)
		tok := s.token
		s.mu.Unlock()
		if !ok || e.Canceled {
			return
		}
		slog.Warn("ページ読み込み失敗",
			"event_id", "PAGE_LOAD_ERR",
			logging.WithURL(target),
			"error_text", e.ErrorText,
		)
		s.emit(surface.Failed(target, fmt.Errorf("%w: %s", ErrNavigation, e.ErrorText)).For(tok))
	}
}
