package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"etch/internal/faults"
	"etch/internal/progress"
)

// fakeBroker writes an executable shell script standing in for pkexec. The
// script ignores the helper path argument and plays back the given body.
func fakeBroker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write broker script: %v", err)
	}
	return path
}

func newTestLauncher(t *testing.T, broker string) *Launcher {
	t.Helper()
	l, err := New(Options{
		Broker:     broker,
		HelperPath: "/usr/libexec/etch-helper",
		StateDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func drain(t *testing.T, job *Job) []progress.Event {
	t.Helper()
	var events []progress.Event
	for event := range job.Events() {
		events = append(events, event)
	}
	return events
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{StateDir: t.TempDir()}); !errors.Is(err, faults.ErrProcess) {
		t.Errorf("New without helper path = %v, want process error", err)
	}
	if _, err := New(Options{HelperPath: "/usr/libexec/etch-helper"}); !errors.Is(err, faults.ErrProcess) {
		t.Errorf("New without state dir = %v, want process error", err)
	}
}

func TestStartMissingBroker(t *testing.T) {
	l := newTestLauncher(t, filepath.Join(t.TempDir(), "no-such-broker"))
	_, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if !errors.Is(err, faults.ErrProcess) {
		t.Fatalf("Start = %v, want process error", err)
	}
}

func TestStartPassesHelperAndPaths(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("BROKER_ARGS_FILE", argsFile)
	broker := fakeBroker(t, `echo "$@" > "$BROKER_ARGS_FILE"
printf 'READY 4\nDONE\nVERIFY_START 4\nVERIFY_DONE\n'`)
	l := newTestLauncher(t, broker)

	job, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, job)
	if err := job.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args file: %v", err)
	}
	got := strings.TrimSpace(string(raw))
	want := "/usr/libexec/etch-helper /tmp/src.img /dev/sdb"
	if got != want {
		t.Errorf("broker args = %q, want %q", got, want)
	}
}

func TestWaitSuccessfulRun(t *testing.T) {
	broker := fakeBroker(t, `printf 'READY 4\nPROGRESS 4 1000\nDONE\nVERIFY_START 4\nVERIFY_PROGRESS 4 1000\nVERIFY_DONE\nMETRICS total_time=0.01s avg_speed=0.40MB/s total_bytes=4 version=1.0.0\n'`)
	l := newTestLauncher(t, broker)

	job, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.ID() == "" {
		t.Error("job should have an ID")
	}

	events := drain(t, job)
	if err := job.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(events) == 0 {
		t.Fatal("expected events from helper")
	}
	if _, ok := events[0].(progress.Ready); !ok {
		t.Errorf("first event = %T, want Ready", events[0])
	}
	metrics, ok := events[len(events)-1].(progress.Metrics)
	if !ok {
		t.Fatalf("last event = %T, want Metrics", events[len(events)-1])
	}
	if metrics.TotalBytes != 4 || metrics.Version != "1.0.0" {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestWaitHelperReportedError(t *testing.T) {
	broker := fakeBroker(t, `printf 'READY 4\nERROR device vanished mid write\n'
exit 1`)
	l := newTestLauncher(t, broker)

	job, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	events := drain(t, job)
	failure, ok := events[len(events)-1].(progress.Failure)
	if !ok {
		t.Fatalf("last event = %T, want Failure", events[len(events)-1])
	}
	if failure.Message != "device vanished mid write" {
		t.Errorf("failure message = %q", failure.Message)
	}

	if err := job.Wait(); !errors.Is(err, faults.ErrProcess) {
		t.Errorf("Wait = %v, want process error", err)
	}
}

func TestWaitUnexpectedTermination(t *testing.T) {
	broker := fakeBroker(t, `printf 'READY 4\nPROGRESS 2 1000\n'`)
	l := newTestLauncher(t, broker)

	job, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, job)

	err = job.Wait()
	if !errors.Is(err, faults.ErrIO) {
		t.Fatalf("Wait = %v, want io error", err)
	}
	if !errors.Is(err, progress.ErrUnexpectedTermination) {
		t.Errorf("Wait = %v, want unexpected termination cause", err)
	}
}

func TestWaitAuthorizationDenied(t *testing.T) {
	broker := fakeBroker(t, `exit 127`)
	l := newTestLauncher(t, broker)

	job, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, job)

	err = job.Wait()
	if !errors.Is(err, faults.ErrProcess) {
		t.Fatalf("Wait = %v, want process error", err)
	}
	if !strings.Contains(err.Error(), "authorization denied") {
		t.Errorf("Wait error %q should mention authorization", err)
	}
}

func TestSessionLockRejectsSecondJob(t *testing.T) {
	broker := fakeBroker(t, `exec sleep 30`)
	stateDir := t.TempDir()
	l, err := New(Options{Broker: broker, HelperPath: "/usr/libexec/etch-helper", StateDir: stateDir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if err != nil {
		t.Fatalf("Start first: %v", err)
	}
	defer func() {
		first.Cancel()
		drain(t, first)
		_ = first.Wait()
	}()

	_, err = l.Start(context.Background(), "/tmp/src.img", "/dev/sdc")
	if !errors.Is(err, faults.ErrProcess) {
		t.Fatalf("second Start = %v, want process error", err)
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("second Start error %q should mention the running job", err)
	}
}

func TestCancelKillsHelper(t *testing.T) {
	broker := fakeBroker(t, `printf 'READY 4\n'
exec sleep 30`)
	l := newTestLauncher(t, broker)

	job, err := l.Start(context.Background(), "/tmp/src.img", "/dev/sdb")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let the script emit its first line before killing it.
	select {
	case <-job.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first event")
	}

	job.Cancel()
	for range job.Events() {
	}

	err = job.Wait()
	if !errors.Is(err, faults.ErrProcess) {
		t.Fatalf("Wait after cancel = %v, want process error", err)
	}
	if !strings.Contains(err.Error(), "canceled") {
		t.Errorf("Wait error %q should mention cancellation", err)
	}
}
