package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the failure classes an imaging job can hit. Callers
// classify with errors.Is and decide recovery from the class, never from
// message text.
var (
	// ErrPrecondition covers safety-gate rejections: wrong path shape, not a
	// block device, mounted partitions. Recoverable by picking another target.
	ErrPrecondition = errors.New("precondition error")

	// ErrIO covers read/write/open/sync failures during a phase. The target's
	// state is unknown afterwards and must be treated as unsafe.
	ErrIO = errors.New("io error")

	// ErrVerify covers read-back mismatches. Distinct from ErrIO: the copy
	// completed but the medium returned different data.
	ErrVerify = errors.New("verification error")

	// ErrProcess covers failures before any imaging begins: broker missing,
	// authorization denied, child spawn failure, session lock held.
	ErrProcess = errors.New("process error")
)

// Wrap tags err with the provided marker while prefixing component and
// operation context. The marker should be one of the exported sentinels.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether the user can retry without touching the target
// device state: precondition and process failures happen before any byte is
// written.
func Recoverable(err error) bool {
	return errors.Is(err, ErrPrecondition) || errors.Is(err, ErrProcess)
}

// TargetUnsafe reports whether the failure leaves the target device in an
// unknown, possibly partially written state.
func TargetUnsafe(err error) bool {
	return errors.Is(err, ErrIO) || errors.Is(err, ErrVerify)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
