package completion

import (
	"testing"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
)

func receive(t *testing.T, ch <-chan renewerr.Outcome) renewerr.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	default:
		t.Fatal("結果が届いていない")
		return renewerr.Outcome{}
	}
}

func pending(ch <-chan renewerr.Outcome) bool {
	select {
	case <-ch:
		return false
	default:
		return true
	}
}

func TestResolveOldestFIFO(t *testing.T) {
	r := NewRegistry()
	first := r.Register()
	second := r.Register()

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	if !r.ResolveOldest(renewerr.Success()) {
		t.Fatal("ResolveOldest = false")
	}
	if o := receive(t, first); !o.Succeeded() {
		t.Errorf("1件目 = %s, want success", o.Label())
	}
	if !pending(second) {
		t.Error("2件目はまだ解決されない")
	}

	r.ResolveOldest(renewerr.FailureOf(renewerr.KindTransport, nil))
	if o := receive(t, second); o.Label() != "transportError" {
		t.Errorf("2件目 = %s", o.Label())
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestResolveEmpty(t *testing.T) {
	r := NewRegistry()
	if r.ResolveOldest(renewerr.Success()) {
		t.Error("空のRegistryではfalseを返す")
	}
}

func TestAttach(t *testing.T) {
	r := NewRegistry()

	// 要求がなければ新規登録
	a := r.Attach()
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	b := r.Attach()
	if r.Len() != 1 {
		t.Fatalf("合流では件数は増えない: %d", r.Len())
	}

	r.ResolveOldest(renewerr.FailureOf(renewerr.KindAlreadyHasLatestUPass, nil))
	for _, ch := range []<-chan renewerr.Outcome{a, b} {
		if o := receive(t, ch); !o.Settled() {
			t.Errorf("結果 = %s", o.Label())
		}
	}
	// 1回だけ届く
	if !pending(a) || !pending(b) {
		t.Error("結果が2回届いた")
	}
}

func TestResolveAll(t *testing.T) {
	r := NewRegistry()
	chans := []<-chan renewerr.Outcome{r.Register(), r.Register(), r.Attach()}

	if n := r.ResolveAll(renewerr.FailureOf(renewerr.KindTransport, nil)); n != 2 {
		t.Errorf("ResolveAll = %d, want 2", n)
	}
	for _, ch := range chans {
		if o := receive(t, ch); o.Label() != "transportError" {
			t.Errorf("結果 = %s", o.Label())
		}
	}
}
