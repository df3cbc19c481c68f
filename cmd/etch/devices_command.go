package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"etch/internal/device"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List storage devices that are safe to write to",
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier := device.NewClassifier(ctx.ensureLogger())

			if !watch {
				return printDevices(cmd, classifier, jsonOutput)
			}
			return watchDevices(cmd, ctx, classifier, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the device list as JSON")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and reprint on attach/detach")
	return cmd
}

func printDevices(cmd *cobra.Command, classifier *device.Classifier, jsonOutput bool) error {
	targets := classifier.Enumerate()

	if jsonOutput {
		type jsonDevice struct {
			Path          string `json:"path"`
			Vendor        string `json:"vendor"`
			Model         string `json:"model"`
			CapacityBytes uint64 `json:"capacity_bytes"`
			Capacity      string `json:"capacity"`
			Removable     bool   `json:"removable"`
			Connection    string `json:"connection"`
		}
		devices := make([]jsonDevice, 0, len(targets))
		for _, t := range targets {
			devices = append(devices, jsonDevice{
				Path:          t.Path,
				Vendor:        t.Vendor,
				Model:         t.Model,
				CapacityBytes: t.CapacityBytes,
				Capacity:      t.CapacityHuman(),
				Removable:     t.Removable,
				Connection:    t.Connection.String(),
			})
		}
		return writeJSON(cmd, map[string]any{"devices": devices})
	}

	out := cmd.OutOrStdout()
	if len(targets) == 0 {
		fmt.Fprintln(out, "No writable storage devices found. Attach a USB drive and try again.")
		return nil
	}

	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{
			t.Path,
			t.Vendor,
			t.Model,
			t.CapacityHuman(),
			t.Connection.String(),
			yesNo(t.Removable),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Path", "Vendor", "Model", "Capacity", "Bus", "Removable"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func watchDevices(cmd *cobra.Command, ctx *commandContext, classifier *device.Classifier, jsonOutput bool) error {
	sigCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	refresh := make(chan struct{}, 1)
	monitor := device.NewMonitor(ctx.ensureLogger(), func(action, devicePath string) {
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
	if err := monitor.Start(sigCtx); err != nil {
		return err
	}
	defer monitor.Stop()

	if err := printDevices(cmd, classifier, jsonOutput); err != nil {
		return err
	}
	for {
		select {
		case <-sigCtx.Done():
			return nil
		case <-refresh:
			// The kernel raises events before sysfs settles; give it a beat.
			time.Sleep(200 * time.Millisecond)
			fmt.Fprintln(cmd.OutOrStdout())
			if err := printDevices(cmd, classifier, jsonOutput); err != nil {
				return err
			}
		}
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
