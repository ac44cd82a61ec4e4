package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"friday/internal/agenda"
	logx "friday/pkg/logx"
)

type stubSink struct {
	name string
	err  error
	got  []string
}

func (s *stubSink) Name() string { return s.name }
func (s *stubSink) Send(ctx context.Context, msg string) error {
	s.got = append(s.got, msg)
	return s.err
}

func commitment(kind agenda.Kind, label string) agenda.Commitment {
	return agenda.Commitment{
		ID:     "x",
		Kind:   kind,
		Label:  label,
		FireAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Status: agenda.StatusPending,
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind agenda.Kind
		want string
	}{
		{kind: agenda.KindReminder, want: "Reminder: take medicine"},
		{kind: agenda.KindMeeting, want: "Meeting now: take medicine"},
	}
	for _, tt := range tests {
		if got := Format(commitment(tt.kind, "take medicine")); got != tt.want {
			t.Fatalf("Format(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestNotifyDeliversToAllSinks(t *testing.T) {
	t.Parallel()
	a := &stubSink{name: "a"}
	b := &stubSink{name: "b"}
	svc := New(Config{RatePerSec: 100}, logx.Nop(), a, b)

	if err := svc.Notify(context.Background(), commitment(agenda.KindReminder, "water")); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("sink deliveries = %d/%d, want 1/1", len(a.got), len(b.got))
	}
}

func TestNotifyPartialFailureStillCountsAsDelivered(t *testing.T) {
	t.Parallel()
	broken := &stubSink{name: "broken", err: errors.New("down")}
	ok := &stubSink{name: "ok"}
	svc := New(Config{RatePerSec: 100}, logx.Nop(), broken, ok)

	if err := svc.Notify(context.Background(), commitment(agenda.KindReminder, "x")); err != nil {
		t.Fatalf("Notify with one healthy sink: %v", err)
	}
	hist := svc.History()
	if len(hist) != 1 || len(hist[0].Failed) != 1 || hist[0].Failed[0] != "broken" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestNotifyAllSinksFailed(t *testing.T) {
	t.Parallel()
	broken := &stubSink{name: "broken", err: errors.New("down")}
	svc := New(Config{RatePerSec: 100}, logx.Nop(), broken)

	err := svc.Notify(context.Background(), commitment(agenda.KindReminder, "x"))
	if !errors.Is(err, ErrNoSink) {
		t.Fatalf("err = %v, want ErrNoSink", err)
	}
}

func TestConsoleSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	svc := New(Config{RatePerSec: 100}, logx.Nop(), sink)

	if err := svc.Notify(context.Background(), commitment(agenda.KindMeeting, "standup")); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "Meeting now: standup" {
		t.Fatalf("console output = %q", got)
	}
}

func TestNotifyHonorsCancelledContext(t *testing.T) {
	t.Parallel()
	sink := &stubSink{name: "a"}
	// Rate 1/s with an exhausted bucket forces Wait to block; a cancelled
	// context must abort instead.
	svc := New(Config{RatePerSec: 1}, logx.Nop(), sink)
	_ = svc.Notify(context.Background(), commitment(agenda.KindReminder, "one"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Notify(ctx, commitment(agenda.KindReminder, "two")); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if len(sink.got) != 1 {
		t.Fatalf("sink deliveries = %d, want 1", len(sink.got))
	}
}
