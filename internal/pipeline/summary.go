package pipeline

import (
	"log/slog"
	"time"
)

// Summary counts what a run did.
type Summary struct {
	RunID    string
	Threads  int
	Messages int
	Outcomes map[Outcome]int
	// SinkFailures counts records the sink could not write.
	SinkFailures int
	// Interrupted is set when the context was cancelled before the last message.
	Interrupted bool
	Duration    time.Duration
}

func newSummary(runID string) *Summary {
	return &Summary{RunID: runID, Outcomes: make(map[Outcome]int)}
}

// Count returns the number of messages that reached outcome o.
func (s *Summary) Count(o Outcome) int {
	return s.Outcomes[o]
}

// Failed returns the number of messages with a failed outcome.
func (s *Summary) Failed() int {
	n := 0
	for o, c := range s.Outcomes {
		if o.Failed() {
			n += c
		}
	}
	return n
}

// LogValue implements slog.LogValuer.
func (s *Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("run_id", s.RunID),
		slog.Int("threads", s.Threads),
		slog.Int("messages", s.Messages),
		slog.Int("sink_failures", s.SinkFailures),
		slog.Bool("interrupted", s.Interrupted),
		slog.Duration("duration", s.Duration),
	}
	for _, o := range Outcomes {
		if c := s.Outcomes[o]; c > 0 {
			attrs = append(attrs, slog.Int(string(o), c))
		}
	}
	return slog.GroupValue(attrs...)
}
