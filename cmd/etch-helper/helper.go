package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"etch/internal/imaging"
	"etch/internal/progress"
)

const helperVersion = "1.0.0"

// deviceDir is the only directory targets may live in.
var deviceDir = "/dev"

// isBlockDevice is stubbed in tests, where real block devices are not
// available.
var isBlockDevice = func(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	return st.Mode&unix.S_IFMT == unix.S_IFBLK, nil
}

func runHelper(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	if len(args) != 2 {
		return errors.New("usage: etch-helper <image_path> <device_path>")
	}
	sourcePath, targetPath := args[0], args[1]

	if err := validateSource(sourcePath); err != nil {
		return err
	}
	if err := validateTarget(targetPath); err != nil {
		return err
	}

	engine, err := imaging.New(imaging.Options{
		Source:  sourcePath,
		Target:  targetPath,
		Emitter: progress.NewEmitter(stdout),
		Logger:  logger,
		Version: helperVersion,
	})
	if err != nil {
		return err
	}
	return engine.Run(ctx)
}

func validateSource(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("source image does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("read source metadata: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source is not a regular file: %s", path)
	}
	return nil
}

func validateTarget(path string) error {
	if filepath.Dir(filepath.Clean(path)) != deviceDir {
		return fmt.Errorf("refusing to operate on non-%s paths", deviceDir)
	}
	block, err := isBlockDevice(path)
	if err != nil {
		return fmt.Errorf("read device metadata: %w", err)
	}
	if !block {
		return fmt.Errorf("target is not a block device: %s", path)
	}
	return nil
}
