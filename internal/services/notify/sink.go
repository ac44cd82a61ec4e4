package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	logx "friday/pkg/logx"
)

// LogSink writes notifications into the structured log. Always on: even
// with every other surface down, a fired reminder leaves a trace.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) Name() string { return "log" }

func (s LogSink) Send(ctx context.Context, msg string) error {
	_ = ctx
	s.Log.Info("notification", logx.String("text", msg))
	return nil
}

// ConsoleSink writes one plain line per notification. This is the seam the
// local voice surface reads from; in a terminal it is simply visible output.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Send(ctx context.Context, msg string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, msg)
	return err
}
