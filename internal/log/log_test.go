package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf, JSON: true})

	l.Info("hello", FieldUserID, 7)
	out := buf.String()
	if !strings.Contains(out, `"component":"ledger"`) || !strings.Contains(out, `"user_id":7`) {
		t.Fatalf("unexpected output: %s", out)
	}
	if l.WithComponent(ComponentAuth).Component() != ComponentAuth {
		t.Fatal("WithComponent did not switch component")
	}
}

func TestFields(t *testing.T) {
	f := NewFields().
		WithTenant(0).
		WithTransfer(1, 2, 300).
		WithError(errors.New("boom"), ErrorTypeInternal).
		WithHTTPResponse(404, 12)

	if _, ok := f[FieldUserID]; ok {
		t.Error("zero tenant should be omitted")
	}
	if f[FieldAmountCents] != int64(300) || f[FieldErrorType] != ErrorTypeInternal || f[FieldSuccess] != false {
		t.Errorf("unexpected fields: %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Error("ToSlice length mismatch")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf}).With(FieldRequestID, "req_1")

	FromContext(WithLogger(context.Background(), l)).Info("inside")
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id missing: %s", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("fallback logger should have unknown component")
	}
}

func TestStatusLevel(t *testing.T) {
	tests := map[int]slog.Level{200: slog.LevelInfo, 302: slog.LevelInfo, 400: slog.LevelWarn, 500: slog.LevelError}
	for status, want := range tests {
		if got := StatusLevel(status); got != want {
			t.Errorf("StatusLevel(%d) = %v, want %v", status, got, want)
		}
	}
}
