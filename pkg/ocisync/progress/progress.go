// Package progress defines the sink interface the sync engine reports
// transfer activity to, plus a structured-logging implementation grounded
// in the teacher's xlog conventions and a no-op sink for callers that don't
// want output. The terminal bar renderer itself is an external collaborator,
// not part of this package.
package progress

import (
	"context"
	"sync"
)

// Handle identifies one registered bar across Tick/Complete/Fail calls.
type Handle uint64

// Sink is the capability the sync engine reports activity through. All
// methods must be safe for concurrent use: workers call Tick from their own
// goroutines.
type Sink interface {
	// Register starts tracking a new unit of work labeled label, expected
	// to transfer totalBytes (0 if unknown), and returns its handle.
	Register(label string, totalBytes int64) Handle
	// Tick records that deliveredBytes more bytes have moved for handle.
	Tick(handle Handle, deliveredBytes int64)
	// Complete marks handle as finished successfully.
	Complete(handle Handle)
	// Fail marks handle as finished with reason.
	Fail(handle Handle, reason error)
}

// NopSink discards all activity. Useful for callers and tests that don't
// want progress output.
func NopSink() Sink { return nopSink{} }

type nopSink struct{}

func (nopSink) Register(string, int64) Handle { return 0 }
func (nopSink) Tick(Handle, int64)            {}
func (nopSink) Complete(Handle)               {}
func (nopSink) Fail(Handle, error)            {}

// Bar is a snapshot of one registered unit of work, used by [SlogSink] and
// available to callers that want to inspect current state.
type Bar struct {
	Label      string
	TotalBytes int64
	Delivered  int64
	Done       bool
	Err        error
}

// NewSlogSink returns a Sink that reports Register/Complete/Fail through the
// given logger and keeps an in-memory snapshot of Tick progress, following
// the teacher's structured-logging conventions (pkg/xlog) rather than
// writing to stderr directly.
func NewSlogSink(logger Logger) *SlogSink {
	return &SlogSink{logger: logger, bars: make(map[Handle]*Bar)}
}

// Logger is the minimal structured-logging surface SlogSink depends on,
// satisfied by *pkg/xlog.Logger and by *slog.Logger.
type Logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
}

var _ Sink = (*SlogSink)(nil)

// SlogSink is the default Sink implementation: every transition logs a
// structured event and a snapshot is kept for callers that want to render
// it themselves.
type SlogSink struct {
	logger Logger

	mu   sync.Mutex
	next Handle
	bars map[Handle]*Bar
}

// Register starts tracking label.
func (s *SlogSink) Register(label string, totalBytes int64) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.bars[h] = &Bar{Label: label, TotalBytes: totalBytes}
	s.logger.InfoContext(context.Background(), "transfer started", "label", label, "total_bytes", totalBytes)
	return h
}

// Tick records delivered bytes for handle.
func (s *SlogSink) Tick(handle Handle, deliveredBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bar, ok := s.bars[handle]
	if !ok {
		return
	}
	bar.Delivered += deliveredBytes
}

// Complete marks handle as finished successfully.
func (s *SlogSink) Complete(handle Handle) {
	s.mu.Lock()
	bar, ok := s.bars[handle]
	if ok {
		bar.Done = true
	}
	s.mu.Unlock()
	if ok {
		s.logger.InfoContext(context.Background(), "transfer complete", "label", bar.Label, "bytes", bar.Delivered)
	}
}

// Fail marks handle as finished with reason.
func (s *SlogSink) Fail(handle Handle, reason error) {
	s.mu.Lock()
	bar, ok := s.bars[handle]
	if ok {
		bar.Done = true
		bar.Err = reason
	}
	s.mu.Unlock()
	if ok {
		s.logger.WarnContext(context.Background(), "transfer failed", "label", bar.Label, "bytes", bar.Delivered, "error", reason)
	}
}

// Snapshot returns a copy of every bar registered so far, for callers that
// want to render current state (e.g. a periodic CLI summary).
func (s *SlogSink) Snapshot() []Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := make([]Bar, 0, len(s.bars))
	for _, b := range s.bars {
		bars = append(bars, *b)
	}
	return bars
}
