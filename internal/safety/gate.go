package safety

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"etch/internal/device"
	"etch/internal/faults"
	"etch/internal/logging"
)

// Gate validates a chosen target immediately before the destructive write.
// It re-checks everything it can from scratch: the enumeration snapshot the
// caller picked from may be stale by the time the user confirms.
type Gate struct {
	MountsPath string
	DevDir     string

	logger *slog.Logger
	statFn func(path string) (uint32, error)
}

// NewGate returns a gate reading the live mount table.
func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{
		MountsPath: "/proc/mounts",
		DevDir:     "/dev",
		logger:     logging.NewComponentLogger(logger, "safety-gate"),
	}
}

// Check confirms the target is safe to destroy. Checks run in order and the
// first failure wins; every failure is a precondition error the user can
// recover from by picking a different target.
//
// Write permission is deliberately not probed: ordinary users cannot write
// to device files and the privilege escalation that follows supplies the
// rights. A permission probe here would always fail and is not a safety
// signal.
func (g *Gate) Check(targetPath string) error {
	cleaned := filepath.Clean(strings.TrimSpace(targetPath))
	if cleaned == "" || filepath.Dir(cleaned) != g.devDir() {
		return faults.Wrap(faults.ErrPrecondition, "safety", "check",
			fmt.Sprintf("refusing to operate on non-%s path %q", g.devDir(), targetPath), nil)
	}

	mode, err := g.stat(cleaned)
	if err != nil {
		return faults.Wrap(faults.ErrPrecondition, "safety", "check",
			fmt.Sprintf("target %s does not exist", cleaned), err)
	}
	if mode&unix.S_IFMT != unix.S_IFBLK {
		return faults.Wrap(faults.ErrPrecondition, "safety", "check",
			fmt.Sprintf("target %s is not a block device", cleaned), nil)
	}

	if mountPoint, mounted, err := DeviceMounted(g.mounts(), cleaned); err != nil {
		return faults.Wrap(faults.ErrPrecondition, "safety", "check", "read mount table", err)
	} else if mounted {
		return faults.Wrap(faults.ErrPrecondition, "safety", "check",
			fmt.Sprintf("target %s or one of its partitions is mounted at %s; unmount it first", cleaned, mountPoint), nil)
	}

	if err := g.checkNotRootDevice(cleaned); err != nil {
		return err
	}

	g.logger.Info("target passed safety checks", logging.String(logging.FieldDevice, cleaned))
	return nil
}

// DeviceMounted reports whether any mount table entry's device field begins
// with dev, which covers both the whole device and any of its partitions.
// The returned string is the first matching mount point.
func DeviceMounted(mountsPath, dev string) (string, bool, error) {
	file, err := os.Open(mountsPath)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", mountsPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if strings.HasPrefix(fields[0], dev) {
			return fields[1], true, nil
		}
	}
	return "", false, scanner.Err()
}

// checkNotRootDevice re-derives the root filesystem's base device from the
// mount table and refuses a target that resolves to it. The classifier
// already excludes the boot disk, but this gate cannot assume its input came
// from the classifier.
func (g *Gate) checkNotRootDevice(targetPath string) error {
	classifier := &device.Classifier{MountsPath: g.mounts()}
	rootBase := classifier.RootDeviceBase()
	if rootBase == "" {
		return nil
	}

	targetBase := device.BaseDeviceName(filepath.Base(targetPath))
	if targetBase == rootBase {
		return faults.Wrap(faults.ErrPrecondition, "safety", "check",
			fmt.Sprintf("target %s is the system's boot device", targetPath), nil)
	}
	return nil
}

func (g *Gate) stat(path string) (uint32, error) {
	if g.statFn != nil {
		return g.statFn(path)
	}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	return uint32(st.Mode), nil
}

func (g *Gate) mounts() string {
	if g.MountsPath != "" {
		return g.MountsPath
	}
	return "/proc/mounts"
}

func (g *Gate) devDir() string {
	if g.DevDir != "" {
		return g.DevDir
	}
	return "/dev"
}
