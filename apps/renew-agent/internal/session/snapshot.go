package session

import (
	"time"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/flow"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
)

// Snapshot はセッションの読み取り専用コピー。資格情報は含めない。
type Snapshot struct {
	ID             string     `json:"id"`
	Origin         Origin     `json:"origin"`
	State          flow.State `json:"state"`
	School         string     `json:"school,omitempty"`
	NumUpassSeen   *int       `json:"num_upass_seen,omitempty"`
	Armed          bool       `json:"armed"`
	RenewSubmitted bool       `json:"renew_submitted"`
	Ready          bool       `json:"ready"`
	Suspended      bool       `json:"suspended"`
	Outcome        string     `json:"outcome,omitempty"`
	Title          string     `json:"title,omitempty"`
	Pages          []Page     `json:"pages"`
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Snapshot はセッションのコピーを返す。
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:             s.ID,
		Origin:         s.Origin,
		State:          s.State,
		School:         s.Account.School.ShortName,
		Armed:          s.Armed,
		RenewSubmitted: s.RenewSubmitted,
		Ready:          s.Ready,
		Suspended:      s.Suspended,
		Pages:          append([]Page(nil), s.Pages...),
		StartedAt:      s.StartedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.NumUpassSeen != nil {
		n := *s.NumUpassSeen
		snap.NumUpassSeen = &n
	}
	if s.Outcome != nil {
		snap.Outcome = s.Outcome.Label()
		snap.Title = s.Outcome.Title()
	}
	return snap
}

// Record は保存用の記録を返す。
func (s *Session) Record() *store.SessionRecord {
	rec := &store.SessionRecord{
		ID:             s.ID,
		Origin:         string(s.Origin),
		State:          string(s.State),
		SchoolID:       s.Account.School.ID,
		NumUpassSeen:   -1,
		RenewSubmitted: s.RenewSubmitted,
		StartedAt:      s.StartedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.NumUpassSeen != nil {
		rec.NumUpassSeen = *s.NumUpassSeen
	}
	if s.Outcome != nil {
		rec.Outcome = s.Outcome.Label()
		rec.Title = s.Outcome.Title()
		if err := s.Outcome.AsError(); err != nil {
			rec.Detail = err.Error()
		}
	}
	rec.Pages = make([]string, len(s.Pages))
	for i, p := range s.Pages {
		rec.Pages[i] = p.URL
	}
	return rec
}

// FromRecord は保存済みの記録からSnapshotを復元する。
func FromRecord(rec *store.SessionRecord) Snapshot {
	snap := Snapshot{
		ID:             rec.ID,
		Origin:         Origin(rec.Origin),
		State:          flow.State(rec.State),
		RenewSubmitted: rec.RenewSubmitted,
		Outcome:        rec.Outcome,
		Title:          rec.Title,
		StartedAt:      rec.StartedAt,
		UpdatedAt:      rec.UpdatedAt,
		Pages:          make([]Page, len(rec.Pages)),
	}
	if s, err := school.ByID(rec.SchoolID); err == nil {
		snap.School = s.ShortName
	}
	if rec.NumUpassSeen >= 0 {
		n := rec.NumUpassSeen
		snap.NumUpassSeen = &n
	}
	for i, u := range rec.Pages {
		snap.Pages[i] = Page{URL: u}
	}
	return snap
}
