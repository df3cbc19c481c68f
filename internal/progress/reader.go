package progress

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrUnexpectedTermination reports a stream that closed without VERIFY_DONE
// and without an explicit ERROR line. The child died or was killed; the
// target's state is unknown.
var ErrUnexpectedTermination = errors.New("helper stream ended before verification completed")

// Reader consumes the helper's stdout on a background goroutine and forwards
// decoded events on a channel. Once the channel closes, Err reports whether
// the stream reached a terminal protocol state.
type Reader struct {
	events chan Event
	done   chan struct{}
	err    error
}

// NewReader starts consuming r. The caller owns draining Events until close.
func NewReader(r io.Reader) *Reader {
	reader := &Reader{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go reader.consume(r)
	return reader
}

// Events returns the stream of decoded protocol events. The channel closes
// when the underlying stream ends.
func (r *Reader) Events() <-chan Event {
	return r.events
}

// Err reports the stream-level outcome. It must only be called after Events
// has closed. A nil error means the stream reached VERIFY_DONE or reported
// an explicit Failure event; ErrUnexpectedTermination means neither arrived.
func (r *Reader) Err() error {
	<-r.done
	return r.err
}

func (r *Reader) consume(src io.Reader) {
	defer close(r.done)
	defer close(r.events)

	scanner := bufio.NewScanner(src)
	verified := false
	failed := false
	for scanner.Scan() {
		event, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		switch event.(type) {
		case VerifyDone:
			verified = true
		case Failure:
			failed = true
		}
		r.events <- event
	}

	if err := scanner.Err(); err != nil {
		r.err = fmt.Errorf("read helper stream: %w", err)
		return
	}
	if !verified && !failed {
		r.err = ErrUnexpectedTermination
	}
}
