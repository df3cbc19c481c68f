package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"etch/internal/faults"
	"etch/internal/logging"
	"etch/internal/progress"
)

var commandContext = exec.CommandContext

// Broker exit codes defined by pkexec: 126 when the user dismisses the
// authentication dialog, 127 when authorization is denied or the broker
// cannot run the command.
const (
	exitAuthDismissed = 126
	exitAuthDenied    = 127
)

// Options configures a Launcher.
type Options struct {
	// Broker is the privilege escalation command, normally pkexec.
	Broker string
	// HelperPath is the absolute path of the imaging helper binary.
	HelperPath string
	// StateDir holds the session lock file.
	StateDir string
	Logger   *slog.Logger
}

// Launcher starts privileged imaging jobs through the escalation broker. A
// session lock keeps concurrent jobs out: two writers racing for devices is
// exactly the confusion this tool exists to prevent.
type Launcher struct {
	broker     string
	helperPath string
	lockPath   string
	logger     *slog.Logger
}

// New validates options and constructs a launcher.
func New(opts Options) (*Launcher, error) {
	broker := strings.TrimSpace(opts.Broker)
	if broker == "" {
		broker = "pkexec"
	}
	helper := strings.TrimSpace(opts.HelperPath)
	if helper == "" {
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "new", "helper path required", nil)
	}
	if opts.StateDir == "" {
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "new", "state directory required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{
		broker:     broker,
		helperPath: helper,
		lockPath:   filepath.Join(opts.StateDir, "etch.lock"),
		logger:     logging.NewComponentLogger(logger, "launcher"),
	}, nil
}

// Start spawns the helper as broker(helper, source, target) with its stdout
// piped into a protocol reader. The caller must drain Events until it closes
// and then call Wait.
func (l *Launcher) Start(ctx context.Context, sourcePath, targetPath string) (*Job, error) {
	if _, err := exec.LookPath(l.broker); err != nil {
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "start",
			fmt.Sprintf("privilege broker %q not found", l.broker), err)
	}

	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "start", "create state directory", err)
	}
	lock := flock.New(l.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "start", "acquire session lock", err)
	}
	if !ok {
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "start",
			"another imaging job is already running", nil)
	}

	cmd := commandContext(ctx, l.broker, l.helperPath, sourcePath, targetPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = lock.Unlock()
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "start", "stdout pipe", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = lock.Unlock()
		return nil, faults.Wrap(faults.ErrProcess, "launcher", "start", "spawn helper", err)
	}

	job := &Job{
		id:     uuid.New().String(),
		cmd:    cmd,
		reader: progress.NewReader(stdout),
		lock:   lock,
		logger: l.logger,
	}
	l.logger.Info("imaging job started",
		logging.String(logging.FieldJobID, job.id),
		logging.String(logging.FieldSource, sourcePath),
		logging.String(logging.FieldDevice, targetPath),
	)
	return job, nil
}

// Job is one running privileged imaging process.
type Job struct {
	id     string
	cmd    *exec.Cmd
	reader *progress.Reader
	lock   *flock.Flock
	logger *slog.Logger

	releaseOnce sync.Once
	canceled    bool
	mu          sync.Mutex
}

// ID returns the job's identifier.
func (j *Job) ID() string { return j.id }

// Events returns the decoded protocol stream from the helper's stdout. The
// channel closes when the helper's stdout ends.
func (j *Job) Events() <-chan progress.Event {
	return j.reader.Events()
}

// Wait blocks until the helper exits and reports the combined outcome. Call
// only after draining Events.
func (j *Job) Wait() error {
	defer j.release()

	streamErr := j.reader.Err()
	waitErr := j.cmd.Wait()

	j.mu.Lock()
	canceled := j.canceled
	j.mu.Unlock()
	if canceled {
		return faults.Wrap(faults.ErrProcess, "launcher", "wait", "job canceled", streamErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			switch exitErr.ExitCode() {
			case exitAuthDismissed:
				return faults.Wrap(faults.ErrProcess, "launcher", "wait", "authorization dismissed", nil)
			case exitAuthDenied:
				return faults.Wrap(faults.ErrProcess, "launcher", "wait", "authorization denied", nil)
			}
		}
	}
	if streamErr != nil {
		return faults.Wrap(faults.ErrIO, "launcher", "wait", "helper terminated abnormally", streamErr)
	}
	if waitErr != nil {
		return faults.Wrap(faults.ErrProcess, "launcher", "wait", "helper exited with failure", waitErr)
	}
	return nil
}

// Cancel kills the helper process. The target must be treated as partially
// written afterwards; Wait still has to be called to reap the child.
func (j *Job) Cancel() {
	j.mu.Lock()
	j.canceled = true
	j.mu.Unlock()

	if j.cmd.Process != nil {
		if err := j.cmd.Process.Kill(); err != nil {
			j.logger.Warn("failed to kill helper process",
				logging.String(logging.FieldJobID, j.id),
				logging.Error(err),
			)
		}
	}
}

func (j *Job) release() {
	j.releaseOnce.Do(func() {
		if err := j.lock.Unlock(); err != nil {
			j.logger.Warn("failed to release session lock",
				logging.String(logging.FieldJobID, j.id),
				logging.Error(err),
			)
		}
	})
}
