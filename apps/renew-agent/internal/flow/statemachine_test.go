package flow

import (
	"errors"
	"testing"
)

// TestValidateTransition_Valid は有効な遷移パターンをテーブル駆動で検証する
func TestValidateTransition_Valid(t *testing.T) {
	tests := []struct {
		name    string
		current State
		event   Event
		want    State
	}{
		{"IDLE->CONNECTING", StateIdle, EventStart, StateConnecting},
		{"IDLE->FAILED(キャンセル)", StateIdle, EventCancelled, StateFailed},

		{"CONNECTING->AWAITING_SCHOOL_SELECTION", StateConnecting, EventSelectSchool, StateAwaitingSchoolSelection},
		{"CONNECTING->AUTHENTICATING(直接ログイン)", StateConnecting, EventAuthPageArrived, StateAuthenticating},
		{"CONNECTING->CHECKING_PASS_COUNT(認証済み)", StateConnecting, EventPostAuthArrived, StateCheckingPassCount},
		{"CONNECTING->RENEWING(再接続)", StateConnecting, EventRenewResumed, StateRenewing},
		{"CONNECTING->VERIFYING_RENEWAL(再接続)", StateConnecting, EventVerify, StateVerifyingRenewal},

		{"AWAITING->AUTHENTICATING", StateAwaitingSchoolSelection, EventAuthPageArrived, StateAuthenticating},
		{"AWAITING->FAILED(学校なし)", StateAwaitingSchoolSelection, EventSchoolNotFound, StateFailed},

		{"AUTHENTICATING->CHECKING_PASS_COUNT", StateAuthenticating, EventPostAuthArrived, StateCheckingPassCount},
		{"AUTHENTICATING->FAILED(認証拒否)", StateAuthenticating, EventAuthRejected, StateFailed},
		{"AUTHENTICATING->VERIFYING_RENEWAL(再接続)", StateAuthenticating, EventVerify, StateVerifyingRenewal},

		{"CHECKING->RENEWING", StateCheckingPassCount, EventPassCountBelowCap, StateRenewing},
		{"CHECKING->SUCCEEDED(上限到達)", StateCheckingPassCount, EventPassCountAtCap, StateSucceeded},

		{"RENEWING->VERIFYING_RENEWAL", StateRenewing, EventVerify, StateVerifyingRenewal},

		{"VERIFYING->SUCCEEDED", StateVerifyingRenewal, EventVerified, StateSucceeded},
		{"VERIFYING->FAILED", StateVerifyingRenewal, EventNotVerified, StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTransition(tt.current, tt.event)
			if err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
			if got != tt.want {
				t.Errorf("遷移結果 = %q, 期待値 = %q", got, tt.want)
			}
		})
	}
}

// TestValidateTransition_AbortFromEveryActiveState は実行中の全状態で中断イベントが失敗へ遷移することを検証する
func TestValidateTransition_AbortFromEveryActiveState(t *testing.T) {
	active := []State{
		StateConnecting,
		StateAwaitingSchoolSelection,
		StateAuthenticating,
		StateCheckingPassCount,
		StateRenewing,
		StateVerifyingRenewal,
	}

	for _, st := range active {
		for _, ev := range abortEvents {
			got, err := ValidateTransition(st, ev)
			if err != nil {
				t.Errorf("%s + %s: 予期しないエラー: %v", st, ev, err)
				continue
			}
			if got != StateFailed {
				t.Errorf("%s + %s = %q, want FAILED", st, ev, got)
			}
		}

		got, err := ValidateTransition(st, EventConnectivityRestored)
		if err != nil || got != StateConnecting {
			t.Errorf("%s + CONNECTIVITY_RESTORED = %q, %v; want CONNECTING", st, got, err)
		}
	}
}

// TestValidateTransition_Invalid は無効な遷移パターンを検証する
func TestValidateTransition_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		current State
		event   Event
	}{
		{"IDLE+SelectSchool", StateIdle, EventSelectSchool},
		{"IDLE+NavigationFailed", StateIdle, EventNavigationFailed},
		{"CONNECTING+Verified", StateConnecting, EventVerified},
		{"CONNECTING+PassCountAtCap", StateConnecting, EventPassCountAtCap},
		{"AUTHENTICATING+SelectSchool", StateAuthenticating, EventSelectSchool},
		{"CHECKING+Verify", StateCheckingPassCount, EventVerify},
		{"RENEWING+PassCountBelowCap", StateRenewing, EventPassCountBelowCap},
		{"VERIFYING+AuthRejected", StateVerifyingRenewal, EventAuthRejected},
		{"SUCCEEDED+Start", StateSucceeded, EventStart},
		{"SUCCEEDED+NavigationFailed", StateSucceeded, EventNavigationFailed},
		{"FAILED+ConnectivityRestored", StateFailed, EventConnectivityRestored},
		{"未知の状態", State("BOGUS"), EventStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateTransition(tt.current, tt.event)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

// TestTerminalReachability は任意の実行中状態から終了状態に到達可能であることを検証する
func TestTerminalReachability(t *testing.T) {
	for st := range transitionTable {
		seen := map[State]bool{}
		if !reachesTerminal(st, seen) {
			t.Errorf("%s から終了状態に到達できない", st)
		}
	}
}

func reachesTerminal(st State, seen map[State]bool) bool {
	if IsTerminal(st) {
		return true
	}
	if seen[st] {
		return false
	}
	seen[st] = true
	for _, next := range transitionTable[st] {
		if reachesTerminal(next, seen) {
			return true
		}
	}
	return false
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateIdle, false},
		{StateConnecting, false},
		{StateRenewing, false},
		{StateSucceeded, true},
		{StateFailed, true},
	}
	for _, tt := range tests {
		if got := IsTerminal(tt.state); got != tt.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestIsValidState(t *testing.T) {
	if !IsValidState("VERIFYING_RENEWAL") {
		t.Error("VERIFYING_RENEWALは有効な状態")
	}
	if IsValidState("verifying_renewal") {
		t.Error("小文字は無効")
	}
}
