package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"etch/internal/imaging"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <image> <device>",
		Short: "Compare a device against an image without writing",
		Long: `Verify reads the device back and compares it byte for byte against the
image file. It does not write anything, but reading raw devices usually
still needs elevated privileges.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve image path: %w", err)
			}

			engine, err := imaging.New(imaging.Options{
				Source: imagePath,
				Target: args[1],
				Logger: ctx.ensureLogger(),
			})
			if err != nil {
				return err
			}

			sigCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			if err := engine.Verify(sigCtx); err != nil {
				var mismatch *imaging.MismatchError
				var sizeMismatch *imaging.SizeMismatchError
				switch {
				case errors.As(err, &mismatch):
					fmt.Fprintf(out, "Verification FAILED: first difference at byte %d (image 0x%02x, device 0x%02x).\n",
						mismatch.Offset, mismatch.SourceByte, mismatch.TargetByte)
				case errors.As(err, &sizeMismatch):
					fmt.Fprintf(out, "Verification FAILED: device content ends at byte %d, before the image does.\n",
						sizeMismatch.Offset)
				}
				return err
			}

			fmt.Fprintf(out, "Verification passed: %s matches %s.\n", args[1], filepath.Base(imagePath))
			return nil
		},
	}
	return cmd
}
