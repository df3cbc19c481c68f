package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"etch/internal/faults"
	"etch/internal/logging"
	"etch/internal/progress"
)

// Phase is the engine's position in its single-pass state machine. No phase
// is ever re-entered; failure is terminal for the job.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWriting
	PhaseWriteDone
	PhaseVerifying
	PhaseVerifyDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWriting:
		return "writing"
	case PhaseWriteDone:
		return "write-done"
	case PhaseVerifying:
		return "verifying"
	case PhaseVerifyDone:
		return "verify-done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MismatchError reports the first differing byte found during verification.
type MismatchError struct {
	Offset     uint64
	SourceByte byte
	TargetByte byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("data mismatch at byte offset %d: source 0x%02x, target 0x%02x",
		e.Offset, e.SourceByte, e.TargetByte)
}

// SizeMismatchError reports a short read from the target during verification.
type SizeMismatchError struct {
	Offset   uint64
	Expected int
	Got      int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch at offset %d: expected %d bytes, got %d bytes",
		e.Offset, e.Expected, e.Got)
}

// Options configures an Engine.
type Options struct {
	Source  string
	Target  string
	Emitter *progress.Emitter
	Logger  *slog.Logger
	// ProgressInterval bounds how often progress events are emitted.
	// Defaults to 100ms.
	ProgressInterval time.Duration
	// Version is reported on the final METRICS line.
	Version string
}

// Engine copies a source file onto a target byte stream and verifies the
// result by reading it back. It runs strictly sequentially: write, sync,
// then verify, never interleaved, since both phases share the device.
type Engine struct {
	source   string
	target   string
	emitter  *progress.Emitter
	logger   *slog.Logger
	interval time.Duration
	version  string

	phase      Phase
	startedAt  time.Time
	totalBytes uint64
}

// New constructs an Engine. Source and target paths must be set; the emitter
// may be nil when no protocol stream is wanted (in-process verification).
func New(opts Options) (*Engine, error) {
	if opts.Source == "" || opts.Target == "" {
		return nil, errors.New("imaging: source and target are required")
	}
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		source:   opts.Source,
		target:   opts.Target,
		emitter:  opts.Emitter,
		logger:   logging.NewComponentLogger(logger, "imaging"),
		interval: interval,
		version:  opts.Version,
		phase:    PhaseIdle,
	}, nil
}

// Phase returns the engine's current state.
func (e *Engine) Phase() Phase {
	return e.phase
}

// Run performs the full imaging sequence: write, verify, final metrics.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = time.Now()
	if err := e.Write(ctx); err != nil {
		return err
	}
	if err := e.Verify(ctx); err != nil {
		return err
	}

	elapsed := time.Since(e.startedAt).Seconds()
	avgMBps := 0.0
	if elapsed > 0 {
		avgMBps = float64(e.totalBytes) / elapsed / 1_000_000.0
	}
	if e.emitter != nil {
		if err := e.emitter.Metrics(progress.Metrics{
			ElapsedSeconds: elapsed,
			AvgMBps:        avgMBps,
			TotalBytes:     e.totalBytes,
			Version:        e.version,
		}); err != nil {
			return err
		}
	}
	e.logger.Info("imaging complete",
		logging.Uint64("total_bytes", e.totalBytes),
		logging.Float64("elapsed_seconds", elapsed),
	)
	return nil
}

// Write copies the source onto the target in adaptively sized chunks and
// syncs the device before reporting completion. A failure mid-write leaves
// the target partially written; no rollback is attempted and the error says
// so plainly.
func (e *Engine) Write(ctx context.Context) error {
	if e.phase != PhaseIdle {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "write", fmt.Sprintf("invalid phase %s", e.phase), nil))
	}
	e.phase = PhaseWriting
	if e.startedAt.IsZero() {
		e.startedAt = time.Now()
	}

	source, err := os.Open(e.source)
	if err != nil {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "open source", "", err))
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "stat source", "", err))
	}
	total := uint64(info.Size())
	e.totalBytes = total

	target, err := os.OpenFile(e.target, os.O_WRONLY, 0)
	if err != nil {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "open target", "", err))
	}
	defer target.Close()

	if err := e.emit(func() error { return e.emitter.Ready(total) }); err != nil {
		return e.fail(err)
	}
	e.logger.Info("write phase started",
		logging.String(logging.FieldSource, e.source),
		logging.String(logging.FieldDevice, e.target),
		logging.Uint64("total_bytes", total),
	)

	buffer := make([]byte, BufferSize(info.Size()))
	var written uint64
	phaseStart := time.Now()
	lastProgress := phaseStart

	for {
		if err := ctx.Err(); err != nil {
			return e.fail(faults.Wrap(faults.ErrIO, "imaging", "write", "canceled", err))
		}

		n, readErr := source.Read(buffer)
		if n > 0 {
			if _, writeErr := target.Write(buffer[:n]); writeErr != nil {
				return e.fail(faults.Wrap(faults.ErrIO, "imaging", "write target", "", writeErr))
			}
			written += uint64(n)

			now := time.Now()
			if now.Sub(lastProgress) >= e.interval || written == total {
				bps := throughput(written, now.Sub(phaseStart))
				if err := e.emit(func() error { return e.emitter.WriteProgress(written, bps) }); err != nil {
					return e.fail(err)
				}
				lastProgress = now
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return e.fail(faults.Wrap(faults.ErrIO, "imaging", "read source", "", readErr))
		}
	}

	if err := target.Sync(); err != nil {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "sync target", "", err))
	}
	if err := e.emit(func() error { return e.emitter.WriteDone() }); err != nil {
		return e.fail(err)
	}

	e.phase = PhaseWriteDone
	e.logger.Info("write phase complete", logging.Uint64("bytes_written", written))
	return nil
}

// Verify re-reads both source and target from offset zero and compares them
// chunk by chunk. It is callable either after Write or standalone against a
// previously written target.
func (e *Engine) Verify(ctx context.Context) error {
	if e.phase != PhaseWriteDone && e.phase != PhaseIdle {
		return e.fail(faults.Wrap(faults.ErrVerify, "imaging", "verify", fmt.Sprintf("invalid phase %s", e.phase), nil))
	}
	e.phase = PhaseVerifying

	source, err := os.Open(e.source)
	if err != nil {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "reopen source", "", err))
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "stat source", "", err))
	}
	total := uint64(info.Size())
	if e.totalBytes == 0 {
		e.totalBytes = total
	}

	target, err := os.Open(e.target)
	if err != nil {
		return e.fail(faults.Wrap(faults.ErrIO, "imaging", "reopen target", "", err))
	}
	defer target.Close()

	if err := e.emit(func() error { return e.emitter.VerifyReady(total) }); err != nil {
		return e.fail(err)
	}
	e.logger.Info("verify phase started", logging.Uint64("total_bytes", total))

	chunk := BufferSize(info.Size())
	sourceBuffer := make([]byte, chunk)
	targetBuffer := make([]byte, chunk)
	var verified uint64
	phaseStart := time.Now()
	lastProgress := phaseStart

	for {
		if err := ctx.Err(); err != nil {
			return e.fail(faults.Wrap(faults.ErrIO, "imaging", "verify", "canceled", err))
		}

		n, readErr := source.Read(sourceBuffer)
		if n > 0 {
			got, targetErr := io.ReadFull(target, targetBuffer[:n])
			if targetErr != nil && !errors.Is(targetErr, io.ErrUnexpectedEOF) && !errors.Is(targetErr, io.EOF) {
				return e.fail(faults.Wrap(faults.ErrIO, "imaging", "read target", "", targetErr))
			}
			if got != n {
				return e.fail(faults.Wrap(faults.ErrVerify, "imaging", "verify", "",
					&SizeMismatchError{Offset: verified, Expected: n, Got: got}))
			}
			if !bytes.Equal(sourceBuffer[:n], targetBuffer[:n]) {
				for i := 0; i < n; i++ {
					if sourceBuffer[i] != targetBuffer[i] {
						return e.fail(faults.Wrap(faults.ErrVerify, "imaging", "verify", "", &MismatchError{
							Offset:     verified + uint64(i),
							SourceByte: sourceBuffer[i],
							TargetByte: targetBuffer[i],
						}))
					}
				}
			}
			verified += uint64(n)

			now := time.Now()
			if now.Sub(lastProgress) >= e.interval || verified == total {
				bps := throughput(verified, now.Sub(phaseStart))
				if err := e.emit(func() error { return e.emitter.VerifyProgress(verified, bps) }); err != nil {
					return e.fail(err)
				}
				lastProgress = now
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return e.fail(faults.Wrap(faults.ErrIO, "imaging", "read source", "", readErr))
		}
	}

	if err := e.emit(func() error { return e.emitter.VerifyDone() }); err != nil {
		return e.fail(err)
	}

	e.phase = PhaseVerifyDone
	e.logger.Info("verify phase complete", logging.Uint64("bytes_verified", verified))
	return nil
}

func (e *Engine) emit(fn func() error) error {
	if e.emitter == nil {
		return nil
	}
	return fn()
}

func (e *Engine) fail(err error) error {
	e.phase = PhaseFailed
	return err
}

// throughput computes bytes per second, reporting zero instead of dividing
// by a zero elapsed time.
func throughput(bytesDone uint64, elapsed time.Duration) uint64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return uint64(float64(bytesDone) / secs)
}
