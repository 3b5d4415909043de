package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSession(t *testing.T) {
	before := testutil.ToFloat64(sessionsTotal.WithLabelValues("background", "success"))
	RecordSession("background", "success", 3*time.Second)
	after := testutil.ToFloat64(sessionsTotal.WithLabelValues("background", "success"))
	if after-before != 1 {
		t.Errorf("sessions_total増分 = %v, want 1", after-before)
	}
}

func TestGauges(t *testing.T) {
	SetActive(true)
	if v := testutil.ToFloat64(sessionActive); v != 1 {
		t.Errorf("session_active = %v, want 1", v)
	}
	SetActive(false)
	if v := testutil.ToFloat64(sessionActive); v != 0 {
		t.Errorf("session_active = %v, want 0", v)
	}

	SetPending(3)
	if v := testutil.ToFloat64(pendingRequests); v != 3 {
		t.Errorf("pending_requests = %v, want 3", v)
	}

	SetReachable(true)
	if v := testutil.ToFloat64(siteReachable); v != 1 {
		t.Errorf("site_reachable = %v, want 1", v)
	}
}

func TestRecordPage(t *testing.T) {
	before := testutil.ToFloat64(pagesTotal.WithLabelValues("home", "loaded"))
	RecordPage("home", "loaded")
	if got := testutil.ToFloat64(pagesTotal.WithLabelValues("home", "loaded")) - before; got != 1 {
		t.Errorf("page_arrivals_total増分 = %v, want 1", got)
	}
}
