// Package flow はUPass更新フローの状態遷移とページ判定を定義する。
package flow

// State は更新セッションの状態を表す型
type State string

// 更新セッション状態の定数（9状態）
const (
	StateIdle                    State = "IDLE"                      // 初期状態
	StateConnecting              State = "CONNECTING"                // トップページ読み込み中
	StateAwaitingSchoolSelection State = "AWAITING_SCHOOL_SELECTION" // 学校選択送信済み
	StateAuthenticating          State = "AUTHENTICATING"            // 学校ログイン送信済み
	StateCheckingPassCount       State = "CHECKING_PASS_COUNT"       // 取得済みUPass枚数確認中
	StateRenewing                State = "RENEWING"                  // 更新リクエスト送信中
	StateVerifyingRenewal        State = "VERIFYING_RENEWAL"         // 更新結果確認中
	StateSucceeded               State = "SUCCEEDED"                 // 成功（終了状態）
	StateFailed                  State = "FAILED"                    // 失敗（終了状態）
)

// Event は状態遷移イベントを表す型
type Event string

// 状態遷移イベントの定数
const (
	EventStart                Event = "START"                 // セッション開始、トップページ読み込み
	EventSelectSchool         Event = "SELECT_SCHOOL"         // 学校選択スクリプト発行
	EventAuthPageArrived      Event = "AUTH_PAGE_ARRIVED"     // 学校ログインページ到着
	EventPostAuthArrived      Event = "POST_AUTH_ARRIVED"     // 認証後ページ到着（枚数未確認）
	EventPassCountBelowCap    Event = "PASS_COUNT_BELOW_CAP"  // 枚数が上限未満
	EventPassCountAtCap       Event = "PASS_COUNT_AT_CAP"     // 枚数が上限到達
	EventRenewResumed         Event = "RENEW_RESUMED"         // 再接続後に更新送信をやり直す
	EventVerify               Event = "VERIFY"                // 更新後の確認スクリプト発行
	EventVerified             Event = "VERIFIED"              // 枚数増加を確認
	EventNotVerified          Event = "NOT_VERIFIED"          // 枚数増加を確認できない
	EventAuthRejected         Event = "AUTH_REJECTED"         // ログインページへの再到着
	EventSchoolNotFound       Event = "SCHOOL_NOT_FOUND"      // 学校選択肢なし
	EventNavigationFailed     Event = "NAVIGATION_FAILED"     // ページ読み込み失敗
	EventScriptFailed         Event = "SCRIPT_FAILED"         // スクリプト例外・結果不正
	EventDwellTimeout         Event = "DWELL_TIMEOUT"         // 滞留時間超過
	EventCancelled            Event = "CANCELLED"             // 呼び出し元によるキャンセル
	EventConnectivityRestored Event = "CONNECTIVITY_RESTORED" // 疎通回復、トップページから再開
)

// abortEvents は全ての実行中状態から失敗へ遷移するイベント
var abortEvents = []Event{
	EventNavigationFailed,
	EventScriptFailed,
	EventDwellTimeout,
	EventCancelled,
}

// transitionTable は状態遷移テーブル
var transitionTable = map[State]map[Event]State{
	StateIdle: {
		EventStart:     StateConnecting,
		EventCancelled: StateFailed,
	},
	StateConnecting: {
		EventSelectSchool:    StateAwaitingSchoolSelection,
		EventAuthPageArrived: StateAuthenticating,
		EventPostAuthArrived: StateCheckingPassCount,
		EventRenewResumed:    StateRenewing,
		EventVerify:          StateVerifyingRenewal,
	},
	StateAwaitingSchoolSelection: {
		EventAuthPageArrived: StateAuthenticating,
		EventPostAuthArrived: StateCheckingPassCount,
		EventRenewResumed:    StateRenewing,
		EventVerify:          StateVerifyingRenewal,
		EventSchoolNotFound:  StateFailed,
	},
	StateAuthenticating: {
		EventPostAuthArrived: StateCheckingPassCount,
		EventRenewResumed:    StateRenewing,
		EventVerify:          StateVerifyingRenewal,
		EventAuthRejected:    StateFailed,
	},
	StateCheckingPassCount: {
		EventPassCountBelowCap: StateRenewing,
		EventPassCountAtCap:    StateSucceeded,
	},
	StateRenewing: {
		EventVerify: StateVerifyingRenewal,
	},
	StateVerifyingRenewal: {
		EventVerified:    StateSucceeded,
		EventNotVerified: StateFailed,
	},
}

func init() {
	// 実行中の全状態に共通の遷移を追加する
	for state, events := range transitionTable {
		if state == StateIdle {
			continue
		}
		for _, ev := range abortEvents {
			events[ev] = StateFailed
		}
		events[EventConnectivityRestored] = StateConnecting
	}
}

// ValidateTransition は現在の状態とイベントから次の状態を返す。
// 無効な遷移の場合はErrInvalidTransitionを返す。
func ValidateTransition(current State, event Event) (State, error) {
	// 終了状態からの遷移は不可
	if IsTerminal(current) {
		return "", ErrInvalidTransition
	}

	events, ok := transitionTable[current]
	if !ok {
		return "", ErrInvalidTransition
	}

	next, ok := events[event]
	if !ok {
		return "", ErrInvalidTransition
	}

	return next, nil
}

// IsTerminal は指定された状態が終了状態（SUCCEEDED/FAILED）かどうかを判定する。
func IsTerminal(state State) bool {
	return state == StateSucceeded || state == StateFailed
}

// validStates は有効なState一覧
var validStates = map[State]struct{}{
	StateIdle:                    {},
	StateConnecting:              {},
	StateAwaitingSchoolSelection: {},
	StateAuthenticating:          {},
	StateCheckingPassCount:       {},
	StateRenewing:                {},
	StateVerifyingRenewal:        {},
	StateSucceeded:               {},
	StateFailed:                  {},
}

// IsValidState は文字列が有効なStateかどうかを判定する。
func IsValidState(s string) bool {
	_, ok := validStates[State(s)]
	return ok
}
