package runner

import (
	"sync"

	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/livelog"
)

// Sink receives the events of one operation. *livelog.Client satisfies it.
type Sink interface {
	Send(ev livelog.Event) error
	Close() error
}

// Stream wraps a Sink so that exactly one terminal event is delivered, after which the
// sink is closed and every further event is only written to the server log.
type Stream struct {
	sink   Sink
	logger *logger.Logger

	mu       sync.Mutex
	finished bool
	terminal livelog.Event
}

// NewStream wraps sink.
func NewStream(sink Sink, log *logger.Logger) *Stream {
	return &Stream{sink: sink, logger: log}
}

// Log relays a log line.
func (s *Stream) Log(level livelog.Level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		s.logger.Debug("operation output after completion", zap.String("level", string(level)), zap.String("message", message))
		return
	}
	_ = s.sink.Send(livelog.Log(level, message))
}

// Info relays an info-level log line.
func (s *Stream) Info(message string) { s.Log(livelog.LevelInfo, message) }

// Complete sends a complete event and closes the sink. It returns false if the stream had already finished.
func (s *Stream) Complete(message string) bool {
	return s.finish(livelog.Complete(message))
}

// Fail sends an error event and closes the sink. It returns false if the stream had already finished.
func (s *Stream) Fail(message string) bool {
	return s.finish(livelog.Failure(message))
}

func (s *Stream) finish(ev livelog.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		s.logger.Debug("terminal event suppressed",
			zap.String("type", string(ev.Type)),
			zap.String("message", ev.Message),
			zap.String("first", string(s.terminal.Type)))
		return false
	}
	s.finished = true
	s.terminal = ev
	_ = s.sink.Send(ev)
	_ = s.sink.Close()
	return true
}

// Finished reports whether a terminal event has been sent.
func (s *Stream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Terminal returns the terminal event, if any.
func (s *Stream) Terminal() (livelog.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal, s.finished
}
