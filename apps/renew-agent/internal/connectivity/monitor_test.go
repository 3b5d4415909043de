package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func receive(t *testing.T, m *Monitor) (bool, bool) {
	t.Helper()
	select {
	case up := <-m.Events():
		return up, true
	default:
		return false, false
	}
}

func TestCheckPublishesTransitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	url := server.URL

	m := NewMonitor(url, time.Minute)
	if !m.Reachable() {
		t.Fatal("未確認の間は到達可能とみなすべき")
	}

	// 5xxでも応答があれば到達可能
	if !m.Check(context.Background()) {
		t.Fatal("応答があれば到達可能とすべき")
	}
	if up, ok := receive(t, m); !ok || !up {
		t.Fatalf("初回確認の通知 = %v, %v", up, ok)
	}

	// 変化がなければ通知しない
	m.Check(context.Background())
	if _, ok := receive(t, m); ok {
		t.Error("変化がない場合は通知しないはず")
	}

	server.Close()
	if m.Check(context.Background()) {
		t.Fatal("停止したサーバーは到達不可とすべき")
	}
	if up, ok := receive(t, m); !ok || up {
		t.Fatalf("到達不可の通知 = %v, %v", up, ok)
	}
	if m.Reachable() {
		t.Error("Reachable() = true, want false")
	}
}

func TestPublishKeepsLatest(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:1/", time.Minute)
	m.publish(false)
	m.publish(true)

	up, ok := receive(t, m)
	if !ok || !up {
		t.Errorf("最新の状態のみ残すべき: %v, %v", up, ok)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	m := NewMonitor(server.URL, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case up := <-m.Events():
		if !up {
			t.Error("到達可能を期待")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("通知がタイムアウトした")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Runが終了しない")
	}
}
