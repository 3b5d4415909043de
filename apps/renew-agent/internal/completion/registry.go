// Package completion は未解決の更新要求をFIFOで保持する。
package completion

import (
	"log/slog"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
)

// entry は1セッション分の要求。後から合流した呼び出し元もwaitersに加わる。
type entry struct {
	waiters []chan renewerr.Outcome
}

// Registry は未解決の要求のFIFO。コーディネーターのループからのみ使う。
type Registry struct {
	entries []*entry
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{}
}

// Register は新しい要求を末尾に追加し、結果を受け取るチャネルを返す。
func (r *Registry) Register() <-chan renewerr.Outcome {
	ch := make(chan renewerr.Outcome, 1)
	r.entries = append(r.entries, &entry{waiters: []chan renewerr.Outcome{ch}})
	return ch
}

// Attach は最新の要求に呼び出し元を合流させる。要求がなければRegisterと同じ。
func (r *Registry) Attach() <-chan renewerr.Outcome {
	if len(r.entries) == 0 {
		return r.Register()
	}
	ch := make(chan renewerr.Outcome, 1)
	last := r.entries[len(r.entries)-1]
	last.waiters = append(last.waiters, ch)
	return ch
}

// ResolveOldest は最古の要求を取り出し、全ての待ち手に結果を1回だけ届ける。
// 要求がなければ何もせずfalseを返す。
func (r *Registry) ResolveOldest(o renewerr.Outcome) bool {
	if len(r.entries) == 0 {
		slog.Warn("未解決の更新要求がない",
			"event_id", "COMPLETION_EMPTY",
			"outcome", o.Label(),
		)
		return false
	}
	oldest := r.entries[0]
	r.entries[0] = nil
	r.entries = r.entries[1:]
	for _, ch := range oldest.waiters {
		ch <- o
	}
	return true
}

// ResolveAll は全ての要求を同じ結果で解決し、解決した件数を返す。
func (r *Registry) ResolveAll(o renewerr.Outcome) int {
	n := 0
	for len(r.entries) > 0 {
		r.ResolveOldest(o)
		n++
	}
	return n
}

// Len は未解決の要求数を返す。
func (r *Registry) Len() int {
	return len(r.entries)
}
