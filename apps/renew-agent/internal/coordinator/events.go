package coordinator

import (
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
)

// event はイベントループの受信箱に入るメッセージ
type event interface {
	isEvent()
}

// renewRequest は更新要求。replyには結果を受け取るチャネルを返す。
type renewRequest struct {
	origin session.Origin
	reply  chan (<-chan renewerr.Outcome)
}

// prepareRequest は更新要求前の事前読み込み要求
type prepareRequest struct {
	reply chan error
}

// cancelRequest は実行中セッションの取り消し要求
type cancelRequest struct {
	reply chan bool
}

// snapshotRequest は実行中セッションの参照要求
type snapshotRequest struct {
	reply chan snapshotReply
}

type snapshotReply struct {
	snapshot session.Snapshot
	ok       bool
}

// dwellTimeout は滞留タイマーの発火。世代が一致しない場合は破棄する。
type dwellTimeout struct {
	sessionID  string
	generation uint64
}

func (renewRequest) isEvent()    {}
func (prepareRequest) isEvent()  {}
func (cancelRequest) isEvent()   {}
func (snapshotRequest) isEvent() {}
func (dwellTimeout) isEvent()    {}
