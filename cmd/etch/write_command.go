package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"etch/internal/device"
	"etch/internal/faults"
	"etch/internal/launcher"
	"etch/internal/progress"
	"etch/internal/safety"
)

func newWriteCommand(ctx *commandContext) *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "write <image> <device>",
		Short: "Write an image to a device and verify it",
		Long: `Write copies the image file onto the device through a privileged helper
spawned via the configured escalation broker, then reads the device back to
verify every byte. The target is checked against the mount table and the
boot device immediately before writing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve image path: %w", err)
			}
			if info, err := os.Stat(imagePath); err != nil {
				return fmt.Errorf("inspect image %q: %w", imagePath, err)
			} else if !info.Mode().IsRegular() {
				return fmt.Errorf("image %q is not a regular file", imagePath)
			}
			targetPath := strings.TrimSpace(args[1])

			gate := safety.NewGate(logger)
			if err := gate.Check(targetPath); err != nil {
				return err
			}

			if !assumeYes {
				confirmed, err := confirmWrite(cmd, imagePath, targetPath)
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			helperPath, err := ctx.helperPath()
			if err != nil {
				return err
			}
			l, err := launcher.New(launcher.Options{
				Broker:     cfg.Helper.Broker,
				HelperPath: helperPath,
				StateDir:   cfg.Paths.StateDir,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			sigCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			job, err := l.Start(sigCtx, imagePath, targetPath)
			if err != nil {
				return err
			}

			finished := make(chan struct{})
			go func() {
				select {
				case <-sigCtx.Done():
					job.Cancel()
				case <-finished:
				}
			}()

			out := cmd.OutOrStdout()
			render := newProgressRenderer(out)
			var helperFailure string
			for event := range job.Events() {
				if failure, ok := event.(progress.Failure); ok {
					helperFailure = failure.Message
				}
				render.handle(event)
			}
			close(finished)

			err = job.Wait()
			switch {
			case err == nil:
				return nil
			case helperFailure != "":
				fmt.Fprintf(out, "\nWrite failed: %s\n", helperFailure)
				fmt.Fprintln(out, "The device may be partially written. Do not boot from it.")
				return err
			case faults.TargetUnsafe(err):
				fmt.Fprintln(out, "\nThe device may be partially written. Do not boot from it.")
				return err
			default:
				return err
			}
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// confirmWrite shows what is about to be destroyed and requires the user to
// type yes in full.
func confirmWrite(cmd *cobra.Command, imagePath, targetPath string) (bool, error) {
	out := cmd.OutOrStdout()

	label := targetPath
	for _, t := range device.NewClassifier(nil).Enumerate() {
		if t.Path == targetPath {
			label = fmt.Sprintf("%s (%s, %s)", t.Path, t.Label(), t.CapacityHuman())
			break
		}
	}

	fmt.Fprintf(out, "About to write %s\n", filepath.Base(imagePath))
	fmt.Fprintf(out, "          onto %s\n", label)
	fmt.Fprintln(out, "ALL DATA ON THE DEVICE WILL BE DESTROYED.")
	fmt.Fprint(out, "Type 'yes' to continue: ")

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "yes", nil
}

// progressRenderer turns protocol events into terminal output. On a TTY the
// percentage updates in place; otherwise updates are throttled to whole
// lines so logs stay readable.
type progressRenderer struct {
	out        io.Writer
	tty        bool
	totalBytes uint64
	lastLine   time.Time
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return &progressRenderer{out: out, tty: stdoutIsTerminal()}
}

func (r *progressRenderer) handle(event progress.Event) {
	switch e := event.(type) {
	case progress.Ready:
		r.totalBytes = e.TotalBytes
		fmt.Fprintf(r.out, "Writing %s...\n", formatBytes(e.TotalBytes))
	case progress.WriteProgress:
		r.line("Writing", e.BytesDone, e.BytesPerSecond)
	case progress.WriteDone:
		r.finishLine()
		fmt.Fprintln(r.out, "Write complete, syncing done.")
	case progress.VerifyReady:
		fmt.Fprintf(r.out, "Verifying %s...\n", formatBytes(e.TotalBytes))
	case progress.VerifyProgress:
		r.line("Verifying", e.BytesDone, e.BytesPerSecond)
	case progress.VerifyDone:
		r.finishLine()
		fmt.Fprintln(r.out, "Verification passed.")
	case progress.Metrics:
		fmt.Fprintf(r.out, "Wrote %s in %.2fs (%.2f MB/s average).\n",
			formatBytes(e.TotalBytes), e.ElapsedSeconds, e.AvgMBps)
	case progress.Failure:
		r.finishLine()
	}
}

func (r *progressRenderer) line(phase string, done, bps uint64) {
	percent := 0.0
	if r.totalBytes > 0 {
		percent = float64(done) / float64(r.totalBytes) * 100
	}
	if r.tty {
		fmt.Fprintf(r.out, "\r%s: %5.1f%% (%s/s)   ", phase, percent, formatBytes(bps))
		return
	}
	if time.Since(r.lastLine) < 2*time.Second && done != r.totalBytes {
		return
	}
	r.lastLine = time.Now()
	fmt.Fprintf(r.out, "%s: %.1f%% (%s/s)\n", phase, percent, formatBytes(bps))
}

func (r *progressRenderer) finishLine() {
	if r.tty {
		fmt.Fprintln(r.out)
	}
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1f GB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1f MB", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1f KB", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
