package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/flow"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func testAccount() credential.Account {
	sfu, _ := school.ByID(1)
	return credential.Account{Username: "student01", Password: "hunter2", School: sfu}
}

func TestNew(t *testing.T) {
	fg := New(OriginForeground, testAccount(), fixedClock())
	if fg.ID == "" {
		t.Error("IDが採番されていない")
	}
	if fg.State != flow.StateIdle || fg.Armed {
		t.Errorf("フォアグラウンドはIDLE・未要求で開始: %+v", fg)
	}

	bg := New(OriginBackground, testAccount(), nil)
	if !bg.Armed {
		t.Error("バックグラウンドは要求済みで開始する")
	}
	if bg.ID == fg.ID {
		t.Error("IDが重複している")
	}
}

func TestToken(t *testing.T) {
	a := New(OriginForeground, testAccount(), fixedClock())
	b := New(OriginForeground, testAccount(), fixedClock())

	first := a.Token()
	if first != (surface.Token{Session: a.ID}) {
		t.Errorf("Token = %+v", first)
	}
	a.Epoch++
	if a.Token() == first {
		t.Error("読み込みごとにTokenが変わるはず")
	}
	if b.Token().Session == a.Token().Session {
		t.Error("セッションごとにTokenが異なるはず")
	}
}

func TestTransition(t *testing.T) {
	s := New(OriginForeground, testAccount(), fixedClock())
	s.Ready = true

	next, err := s.Transition(flow.EventStart)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if next != flow.StateConnecting || s.Generation != 1 || s.Ready {
		t.Errorf("Transition後 = state %s gen %d ready %v", next, s.Generation, s.Ready)
	}

	// 無効な遷移では状態もGenerationも変えない
	if _, err := s.Transition(flow.EventVerified); !errors.Is(err, flow.ErrInvalidTransition) {
		t.Errorf("ErrInvalidTransitionを期待: %v", err)
	}
	if s.State != flow.StateConnecting || s.Generation != 1 {
		t.Errorf("無効遷移後 = %s / %d", s.State, s.Generation)
	}

	s.ForceFail()
	if !s.Terminal() || s.Generation != 2 {
		t.Errorf("ForceFail後 = %s / %d", s.State, s.Generation)
	}
}

func TestSetNumUpassSeen(t *testing.T) {
	s := New(OriginForeground, testAccount(), nil)
	if err := s.SetNumUpassSeen(0); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if err := s.SetNumUpassSeen(1); !errors.Is(err, ErrPassCountAlreadySet) {
		t.Errorf("2回目はErrPassCountAlreadySet: %v", err)
	}
	if *s.NumUpassSeen != 0 {
		t.Errorf("NumUpassSeen = %d, want 0", *s.NumUpassSeen)
	}
}

func TestRecordPageBounded(t *testing.T) {
	s := New(OriginForeground, testAccount(), fixedClock())
	for i := 0; i < config.PageHistoryLimit+5; i++ {
		s.RecordPage(fmt.Sprintf("https://idp.example/p%d?ticket=x", i), flow.PageUnknown, surface.OutcomeLoaded)
	}
	if len(s.Pages) != config.PageHistoryLimit {
		t.Fatalf("len(Pages) = %d, want %d", len(s.Pages), config.PageHistoryLimit)
	}
	if s.Pages[0].URL != "https://idp.example/p5" {
		t.Errorf("最古のページ = %q", s.Pages[0].URL)
	}
}

func TestSnapshotAndRecord(t *testing.T) {
	s := New(OriginBackground, testAccount(), fixedClock())
	_, _ = s.Transition(flow.EventStart)
	s.RecordPage("https://upassbc.translink.ca/", flow.PageHome, surface.OutcomeLoaded)
	_ = s.SetNumUpassSeen(0)
	s.RenewSubmitted = true
	s.ForceFail()
	s.Finish(renewerr.FailureOf(renewerr.KindVerificationFailed, nil))

	snap := s.Snapshot()
	if snap.School != "SFU" || snap.Outcome != "verificationFailedError" || *snap.NumUpassSeen != 0 {
		t.Errorf("Snapshot = %+v", snap)
	}
	// コピーであること
	*snap.NumUpassSeen = 9
	snap.Pages[0].URL = "changed"
	if *s.NumUpassSeen != 0 || s.Pages[0].URL == "changed" {
		t.Error("Snapshotの変更がセッションに波及した")
	}

	rec := s.Record()
	if rec.SchoolID != 1 || rec.NumUpassSeen != 0 || rec.Outcome != "verificationFailedError" || rec.Detail == "" {
		t.Errorf("Record = %+v", rec)
	}

	back := FromRecord(rec)
	if back.ID != s.ID || back.School != "SFU" || back.NumUpassSeen == nil || len(back.Pages) != 1 {
		t.Errorf("FromRecord = %+v", back)
	}

	unseen := New(OriginForeground, testAccount(), nil).Record()
	if unseen.NumUpassSeen != -1 {
		t.Errorf("未確認は-1: %d", unseen.NumUpassSeen)
	}
	if FromRecord(unseen).NumUpassSeen != nil {
		t.Error("-1はnilに復元する")
	}
}
