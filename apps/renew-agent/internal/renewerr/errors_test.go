package renewerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("load home: %w", New(KindTransport, cause))

	if !errors.Is(err, ErrTransport) {
		t.Error("ErrTransportとして判定されるべき")
	}
	if errors.Is(err, ErrUnknown) {
		t.Error("ErrUnknownとして判定されてはならない")
	}
	if !errors.Is(err, cause) {
		t.Error("原因エラーまで辿れるべき")
	}
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"種別付き", New(KindSchoolNotRecognized, nil), KindSchoolNotRecognized},
		{"ラップされた種別付き", fmt.Errorf("wrap: %w", ErrAuthenticationFailed), KindAuthenticationFailed},
		{"種別なし", errors.New("ReferenceError: page is not defined"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	kinds := []Kind{
		KindTransport,
		KindAuthenticationFailed,
		KindSchoolNotRecognized,
		KindAlreadyHasLatestUPass,
		KindVerificationFailed,
		KindUnknown,
		KindCredentialMissing,
	}
	for _, k := range kinds {
		if !k.IsValid() {
			t.Errorf("%s は既知の種別であるべき", k)
		}
		if k.Title() == "" {
			t.Errorf("%s のタイトルが空", k)
		}
	}

	if Kind("bogus").Title() != KindUnknown.Title() {
		t.Error("未知の種別はunknownErrorのタイトルを返すべき")
	}
	if KindTransport.Title() != "Couldn't connect to UPassBC, check your connection." {
		t.Errorf("transportErrorのタイトル = %q", KindTransport.Title())
	}
}

func TestIsSoft(t *testing.T) {
	if !ErrAlreadyHasLatestUPass.IsSoft() {
		t.Error("alreadyHasLatestUPassErrorはソフト終了であるべき")
	}
	for _, e := range []*Error{ErrTransport, ErrUnknown, ErrVerificationFailed} {
		if e.IsSoft() {
			t.Errorf("%s はソフト終了ではない", e.Kind)
		}
	}
}

func TestOutcome(t *testing.T) {
	ok := Success()
	if !ok.Succeeded() || !ok.Settled() {
		t.Error("成功結果はSucceeded/Settledであるべき")
	}
	if ok.Label() != OutcomeSuccess || ok.AsError() != nil {
		t.Errorf("成功結果のラベル = %q", ok.Label())
	}

	soft := FailureOf(KindAlreadyHasLatestUPass, nil)
	if soft.Succeeded() {
		t.Error("ソフト終了は成功ではない")
	}
	if !soft.Settled() {
		t.Error("ソフト終了はSettledであるべき")
	}

	hard := FailureOf(KindTransport, errors.New("timeout"))
	if hard.Settled() {
		t.Error("transportErrorはSettledではない")
	}
	if !errors.Is(hard.AsError(), ErrTransport) {
		t.Error("AsError()はtransportErrorを返すべき")
	}
	if hard.Label() != "transportError" {
		t.Errorf("Label() = %q", hard.Label())
	}

	if Failure(nil).Label() != "unknownError" {
		t.Error("nilの失敗はunknownErrorに丸めるべき")
	}
}
