package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"etch/internal/progress"
	"etch/internal/testsupport"
)

func stubTargetChecks(t *testing.T, dir string) {
	t.Helper()
	origDir, origCheck := deviceDir, isBlockDevice
	deviceDir = dir
	isBlockDevice = func(string) (bool, error) { return true, nil }
	t.Cleanup(func() {
		deviceDir = origDir
		isBlockDevice = origCheck
	})
}

func TestRunHelperFullProtocol(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.img")
	target := filepath.Join(dir, "target")
	testsupport.WriteFile(t, source, 2*1024*1024, 0xA5)
	testsupport.WriteFile(t, target, 2*1024*1024, 0x00)
	stubTargetChecks(t, dir)

	var out bytes.Buffer
	if err := runHelper(context.Background(), []string{source, target}, &out, nil); err != nil {
		t.Fatalf("runHelper: %v", err)
	}

	var events []progress.Event
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		event, ok := progress.ParseLine(scanner.Text())
		if !ok {
			t.Errorf("unparseable protocol line %q", scanner.Text())
			continue
		}
		events = append(events, event)
	}

	if len(events) < 4 {
		t.Fatalf("got %d events, want at least READY/DONE/VERIFY_START/VERIFY_DONE", len(events))
	}
	ready, ok := events[0].(progress.Ready)
	if !ok || ready.TotalBytes != 2*1024*1024 {
		t.Errorf("first event = %#v, want READY 2097152", events[0])
	}
	metrics, ok := events[len(events)-1].(progress.Metrics)
	if !ok {
		t.Fatalf("last event = %#v, want METRICS", events[len(events)-1])
	}
	if metrics.Version != helperVersion || metrics.TotalBytes != 2*1024*1024 {
		t.Errorf("metrics = %+v", metrics)
	}

	verified := false
	for _, event := range events {
		if _, ok := event.(progress.VerifyDone); ok {
			verified = true
		}
	}
	if !verified {
		t.Error("protocol stream missing VERIFY_DONE")
	}
}

func TestRunHelperArgumentCount(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"/tmp/only-one.img"},
		{"a", "b", "c"},
	} {
		err := runHelper(context.Background(), args, &bytes.Buffer{}, nil)
		if err == nil || !strings.Contains(err.Error(), "usage:") {
			t.Errorf("runHelper(%v) = %v, want usage error", args, err)
		}
	}
}

func TestRunHelperMissingSource(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	testsupport.WriteFile(t, target, 1024, 0x00)
	stubTargetChecks(t, dir)

	err := runHelper(context.Background(), []string{filepath.Join(dir, "absent.img"), target}, &bytes.Buffer{}, nil)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("runHelper = %v, want missing source error", err)
	}
}

func TestRunHelperSourceMustBeRegularFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	testsupport.WriteFile(t, target, 1024, 0x00)
	stubTargetChecks(t, dir)

	err := runHelper(context.Background(), []string{dir, target}, &bytes.Buffer{}, nil)
	if err == nil || !strings.Contains(err.Error(), "not a regular file") {
		t.Fatalf("runHelper = %v, want regular file error", err)
	}
}

func TestRunHelperRejectsPathOutsideDeviceDir(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.img")
	testsupport.WriteFile(t, source, 1024, 0xA5)
	stubTargetChecks(t, dir)

	err := runHelper(context.Background(), []string{source, "/somewhere/else/disk"}, &bytes.Buffer{}, nil)
	if err == nil || !strings.Contains(err.Error(), "refusing to operate") {
		t.Fatalf("runHelper = %v, want path restriction error", err)
	}
}

func TestRunHelperRejectsNonBlockTarget(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.img")
	target := filepath.Join(dir, "target")
	testsupport.WriteFile(t, source, 1024, 0xA5)
	testsupport.WriteFile(t, target, 1024, 0x00)

	origDir, origCheck := deviceDir, isBlockDevice
	deviceDir = dir
	isBlockDevice = func(string) (bool, error) { return false, nil }
	t.Cleanup(func() {
		deviceDir = origDir
		isBlockDevice = origCheck
	})

	err := runHelper(context.Background(), []string{source, target}, &bytes.Buffer{}, nil)
	if err == nil || !strings.Contains(err.Error(), "not a block device") {
		t.Fatalf("runHelper = %v, want block device error", err)
	}
}

func TestRunHelperUnwritableTarget(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.img")
	target := filepath.Join(dir, "target")
	testsupport.WriteFile(t, source, 512*1024, 0xA5)
	// A directory can never be opened for writing, even by root.
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatalf("mkdir target: %v", err)
	}
	stubTargetChecks(t, dir)

	err := runHelper(context.Background(), []string{source, target}, &bytes.Buffer{}, nil)
	if err == nil {
		t.Fatal("runHelper should fail when the target cannot be opened for writing")
	}
}
