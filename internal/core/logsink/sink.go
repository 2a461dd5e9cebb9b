// Package logsink serializes echoed messages to a console stream from a single
// background consumer, so connection handlers never wait on output.
package logsink

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"echo_nexus/internal/shared/logger"
)

// TimeLayout is the timestamp format of every printed entry.
const TimeLayout = "2006-01-02 15:04:05.000000000 -07:00"

// ErrClosed is returned by Send once the sink has been closed.
var ErrClosed = stderrors.New("log sink is closed")

// Entry is one received message with its arrival time.
type Entry struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Line renders the entry as "<timestamp>\t<text>".
func (e Entry) Line() string {
	return e.Time.Local().Format(TimeLayout) + "\t" + e.Text
}

// Observer is notified after an entry has been written.
type Observer func(Entry)

// Sink owns the consumer end of an unbounded multi-producer queue.
type Sink struct {
	out io.Writer
	now func() time.Time

	mu        sync.Mutex
	queue     []Entry
	closed    bool
	observers []Observer

	notify chan struct{}
	done   chan struct{}
}

// New creates a sink that prints to out. Call Run to start consuming.
func New(out io.Writer) *Sink {
	return &Sink{
		out:    out,
		now:    time.Now,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Observe registers fn to be called for every printed entry. It must be
// called before Run.
func (s *Sink) Observe(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Sender returns a new producer handle. Handles are cheap and may be cloned
// freely, one per connection.
func (s *Sink) Sender() Sender {
	return Sender{sink: s}
}

// Sender is the producer side of the queue.
type Sender struct {
	sink *Sink
}

// Send stamps text with the current time and enqueues it. It never blocks on
// the consumer.
func (p Sender) Send(text string) error {
	return p.sink.push(Entry{Time: p.sink.now(), Text: text})
}

func (s *Sink) push(e Entry) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending reports how many entries are waiting to be printed.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close permanently closes the queue. Run drains what is left and returns.
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Run is the single consumer loop. It returns after Close once the queue is
// empty, or when ctx is cancelled (after flushing what is already queued).
func (s *Sink) Run(ctx context.Context) {
	defer close(s.done)
	for {
		batch, closed := s.take()
		s.write(batch)
		if closed {
			if s.Pending() == 0 {
				return
			}
			continue
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			batch, _ = s.take()
			s.write(batch)
			return
		}
	}
}

// take swaps out the current queue.
func (s *Sink) take() ([]Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.queue
	s.queue = nil
	return batch, s.closed
}

func (s *Sink) write(batch []Entry) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()

	for _, e := range batch {
		if _, err := io.WriteString(s.out, e.Line()+"\n"); err != nil {
			logger.Error().Err(err).Msg("LogSink: failed to write entry")
			continue
		}
		for _, fn := range observers {
			fn(e)
		}
	}
}
