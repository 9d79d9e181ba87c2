package engine

import "siteauditor/internal/model"

// streamBuffer bounds how many unconsumed events a stream holds before it
// starts coalescing.
const streamBuffer = 64

// Stream is the single-producer event channel between one running audit and
// its consumer. Slow consumers may lose intermediate CrawlProgress values
// (only the most recent matters) but the terminal event is always delivered.
type Stream struct {
	events     chan model.ProgressEvent
	terminated bool // producer-side guard; all sends happen on one goroutine at a time
}

func newStream() *Stream {
	return &Stream{events: make(chan model.ProgressEvent, streamBuffer)}
}

// Events returns the receive side of the stream. The channel is closed right
// after the terminal event.
func (s *Stream) Events() <-chan model.ProgressEvent {
	return s.events
}

// publish delivers a non-terminal event. When the consumer lags behind the
// buffer, the oldest pending event is dropped so the stream keeps the newest
// values and the producer never blocks.
func (s *Stream) publish(ev model.ProgressEvent) {
	if s.terminated {
		return
	}
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// terminate delivers the terminal event and closes the stream. At most one
// terminal event is ever sent.
func (s *Stream) terminate(ev model.ProgressEvent) {
	if s.terminated {
		return
	}
	s.terminated = true
	// Make room if the consumer is gone; the terminal event must not block
	// and must not be dropped.
	for len(s.events) == cap(s.events) {
		select {
		case <-s.events:
		default:
		}
	}
	s.events <- ev
	close(s.events)
}
