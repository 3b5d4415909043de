package logging

import (
	"errors"
	"testing"
)

func TestWithTraceID(t *testing.T) {
	attr := WithTraceID("trace-12345")
	if attr.Key != FieldTraceID {
		t.Errorf("Key = %q, want %q", attr.Key, FieldTraceID)
	}
	if attr.Value.String() != "trace-12345" {
		t.Errorf("Value = %q, want %q", attr.Value.String(), "trace-12345")
	}
}

func TestWithEventID(t *testing.T) {
	attr := WithEventID("RENEW_START")
	if attr.Key != FieldEventID {
		t.Errorf("Key = %q, want %q", attr.Key, FieldEventID)
	}
	if attr.Value.String() != "RENEW_START" {
		t.Errorf("Value = %q, want %q", attr.Value.String(), "RENEW_START")
	}
}

func TestWithError(t *testing.T) {
	t.Run("With error", func(t *testing.T) {
		attr := WithError(errors.New("connection failed"))
		if attr.Key != FieldError {
			t.Errorf("Key = %q, want %q", attr.Key, FieldError)
		}
		if attr.Value.String() != "connection failed" {
			t.Errorf("Value = %q, want %q", attr.Value.String(), "connection failed")
		}
	})

	t.Run("With nil error", func(t *testing.T) {
		attr := WithError(nil)
		if attr.Value.String() != "" {
			t.Errorf("Value = %q, want empty string", attr.Value.String())
		}
	})
}

func TestWithLatency(t *testing.T) {
	attr := WithLatency(150)
	if attr.Key != FieldLatencyMs {
		t.Errorf("Key = %q, want %q", attr.Key, FieldLatencyMs)
	}
	if attr.Value.Int64() != 150 {
		t.Errorf("Value = %d, want %d", attr.Value.Int64(), 150)
	}
}

func TestWithHTTPStatus(t *testing.T) {
	attr := WithHTTPStatus(502)
	if attr.Key != FieldHTTPStatus || attr.Value.Int64() != 502 {
		t.Errorf("attr = %v", attr)
	}
}

func TestSessionAttrs(t *testing.T) {
	if attr := WithSessionID("abc"); attr.Key != FieldSessionID || attr.Value.String() != "abc" {
		t.Errorf("WithSessionID = %v", attr)
	}
	if attr := WithState("RENEWING"); attr.Key != FieldState || attr.Value.String() != "RENEWING" {
		t.Errorf("WithState = %v", attr)
	}
	if attr := WithURL("https://idp.example/login?ticket=x"); attr.Value.String() != "https://idp.example/login" {
		t.Errorf("WithURL = %v", attr)
	}
}

func TestCommonFields(t *testing.T) {
	t.Run("WithUsername with masking", func(t *testing.T) {
		cf := NewCommonFields(NewMasker(true))
		attr := cf.WithUsername("student01")
		if attr.Key != FieldUsername {
			t.Errorf("Key = %q, want %q", attr.Key, FieldUsername)
		}
		if attr.Value.String() != "st******1" {
			t.Errorf("Value = %q", attr.Value.String())
		}
	})

	t.Run("NewCommonFields with nil masker", func(t *testing.T) {
		cf := NewCommonFields(nil)
		// nilの場合はマスキング無効で初期化される
		if got := cf.WithUsername("student01").Value.String(); got != "student01" {
			t.Errorf("Value = %q", got)
		}
	})

	t.Run("SessionLogFields", func(t *testing.T) {
		cf := NewCommonFields(NewMasker(true))
		fields := cf.SessionLogFields("sess-1", "RENEW_START", "student01")
		if len(fields) != 3 {
			t.Fatalf("fields length = %d, want %d", len(fields), 3)
		}
	})
}
