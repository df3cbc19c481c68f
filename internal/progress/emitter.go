package progress

import (
	"fmt"
	"io"
	"sync"
)

// Emitter writes protocol lines for the caller to parse. One emitter owns
// the stream for the lifetime of a job; lines are written atomically under a
// mutex so diagnostic goroutines cannot interleave output.
type Emitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEmitter wraps w, typically the helper's stdout.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Ready announces the write phase.
func (e *Emitter) Ready(totalBytes uint64) error {
	return e.writeLine("READY %d", totalBytes)
}

// WriteProgress reports write-phase progress.
func (e *Emitter) WriteProgress(bytesDone, bytesPerSecond uint64) error {
	return e.writeLine("PROGRESS %d %d", bytesDone, bytesPerSecond)
}

// WriteDone marks the end of the write phase.
func (e *Emitter) WriteDone() error {
	return e.writeLine("DONE")
}

// VerifyReady announces the verification phase.
func (e *Emitter) VerifyReady(totalBytes uint64) error {
	return e.writeLine("VERIFY_START %d", totalBytes)
}

// VerifyProgress reports verification progress.
func (e *Emitter) VerifyProgress(bytesDone, bytesPerSecond uint64) error {
	return e.writeLine("VERIFY_PROGRESS %d %d", bytesDone, bytesPerSecond)
}

// VerifyDone marks full success.
func (e *Emitter) VerifyDone() error {
	return e.writeLine("VERIFY_DONE")
}

// Metrics emits the final summary line.
func (e *Emitter) Metrics(m Metrics) error {
	return e.writeLine("METRICS total_time=%.2fs avg_speed=%.2fMB/s total_bytes=%d version=%s",
		m.ElapsedSeconds, m.AvgMBps, m.TotalBytes, m.Version)
}

// Failure emits an ERROR line with a free-text message.
func (e *Emitter) Failure(message string) error {
	return e.writeLine("ERROR %s", message)
}

func (e *Emitter) writeLine(format string, args ...any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, format+"\n", args...); err != nil {
		return fmt.Errorf("emit progress line: %w", err)
	}
	return nil
}
