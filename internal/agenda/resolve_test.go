package agenda

import (
	"errors"
	"testing"
	"time"
)

func TestResolveTimeOfDay(t *testing.T) {
	t.Parallel()
	r := NewResolver(time.UTC)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec string
		want time.Time
	}{
		{name: "already passed today rolls to tomorrow", spec: "07:30", want: time.Date(2024, 1, 2, 7, 30, 0, 0, time.UTC)},
		{name: "later today stays today", spec: "09:00", want: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{name: "exactly now fires now", spec: "08:00", want: now},
		{name: "midnight rolls", spec: "00:00", want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveTimeOfDay(tt.spec, now)
			if err != nil {
				t.Fatalf("ResolveTimeOfDay(%q) error: %v", tt.spec, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ResolveTimeOfDay(%q) = %v, want %v", tt.spec, got, tt.want)
			}
			if got.Before(now) {
				t.Fatalf("fire instant %v is before now %v", got, now)
			}
		})
	}
}

func TestResolveTimeOfDayRollIsExactly24h(t *testing.T) {
	t.Parallel()
	r := NewResolver(time.UTC)
	now := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)

	got, err := r.ResolveTimeOfDay("06:45", now)
	if err != nil {
		t.Fatalf("ResolveTimeOfDay error: %v", err)
	}
	naive := time.Date(2024, 6, 15, 6, 45, 0, 0, time.UTC)
	if d := got.Sub(naive); d != 24*time.Hour {
		t.Fatalf("roll distance = %v, want 24h", d)
	}
}

func TestResolveTimeOfDayInvalid(t *testing.T) {
	t.Parallel()
	r := NewResolver(time.UTC)
	now := time.Now()

	for _, spec := range []string{"", "7", "24:00", "12:60", "ab:cd", "12:30:00"} {
		if _, err := r.ResolveTimeOfDay(spec, now); !errors.Is(err, ErrBadTimeSpec) {
			t.Fatalf("ResolveTimeOfDay(%q) err = %v, want ErrBadTimeSpec", spec, err)
		}
	}
}

func TestResolveAbsoluteDateTime(t *testing.T) {
	t.Parallel()
	r := NewResolver(time.UTC)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	got, err := r.ResolveAbsoluteDateTime("2024-03-05 14:30:00", now)
	if err != nil {
		t.Fatalf("ResolveAbsoluteDateTime error: %v", err)
	}
	want := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveAbsoluteDateTimeInPast(t *testing.T) {
	t.Parallel()
	r := NewResolver(time.UTC)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	// A stale meeting time must not silently roll forward.
	_, err := r.ResolveAbsoluteDateTime("2023-12-31 10:00:00", now)
	if !errors.Is(err, ErrInPast) {
		t.Fatalf("err = %v, want ErrInPast", err)
	}
}

func TestResolveAbsoluteDateTimeInvalid(t *testing.T) {
	t.Parallel()
	r := NewResolver(time.UTC)
	now := time.Now()

	for _, spec := range []string{"", "2024-03-05", "05/03/2024 14:30:00", "2024-13-01 00:00:00"} {
		if _, err := r.ResolveAbsoluteDateTime(spec, now); !errors.Is(err, ErrBadTimeSpec) {
			t.Fatalf("ResolveAbsoluteDateTime(%q) err = %v, want ErrBadTimeSpec", spec, err)
		}
	}
}
