package progress

import (
	"errors"
	"strings"
	"testing"
)

// lineSink records each emitted line without its trailing newline.
type lineSink struct {
	lines []string
}

func (s *lineSink) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		s.lines = append(s.lines, line)
	}
	return len(p), nil
}

func collect(t *testing.T, stream string) ([]Event, error) {
	t.Helper()
	reader := NewReader(strings.NewReader(stream))
	var events []Event
	for event := range reader.Events() {
		events = append(events, event)
	}
	return events, reader.Err()
}

func TestReaderFullSequence(t *testing.T) {
	stream := strings.Join([]string{
		"READY 1000",
		"PROGRESS 400 100",
		"PROGRESS 1000 200",
		"DONE",
		"VERIFY_START 1000",
		"VERIFY_PROGRESS 1000 500",
		"VERIFY_DONE",
		"METRICS total_time=5.00s avg_speed=0.20MB/s total_bytes=1000 version=1.0.0",
	}, "\n") + "\n"

	events, err := collect(t, stream)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if len(events) != 8 {
		t.Fatalf("got %d events, want 8: %#v", len(events), events)
	}
	if _, ok := events[6].(VerifyDone); !ok {
		t.Fatalf("event 6 = %#v, want VerifyDone", events[6])
	}
}

func TestReaderTruncatedAfterWriteDone(t *testing.T) {
	stream := "READY 1000\nPROGRESS 1000 200\nDONE\n"
	events, err := collect(t, stream)
	if !errors.Is(err, ErrUnexpectedTermination) {
		t.Fatalf("err = %v, want ErrUnexpectedTermination", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
}

func TestReaderExplicitErrorIsNotUnexpected(t *testing.T) {
	stream := "READY 1000\nERROR write failed: no space left on device\n"
	events, err := collect(t, stream)
	if err != nil {
		t.Fatalf("explicit ERROR should not be a stream error, got %v", err)
	}
	failure, ok := events[len(events)-1].(Failure)
	if !ok {
		t.Fatalf("last event = %#v, want Failure", events[len(events)-1])
	}
	if failure.Message != "write failed: no space left on device" {
		t.Fatalf("failure message = %q", failure.Message)
	}
}

func TestReaderSkipsUnknownLines(t *testing.T) {
	stream := strings.Join([]string{
		"READY 10",
		"NOISE from a future helper",
		"DONE",
		"VERIFY_START 10",
		"VERIFY_DONE",
	}, "\n") + "\n"

	events, err := collect(t, stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4 (unknown line must be skipped)", len(events))
	}
}

func TestReaderEmptyStream(t *testing.T) {
	events, err := collect(t, "")
	if !errors.Is(err, ErrUnexpectedTermination) {
		t.Fatalf("err = %v, want ErrUnexpectedTermination", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %#v", events)
	}
}
