package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"etch/internal/fetch"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "download <image-id>",
		Short: "Download a catalog image and verify its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := refreshIfStale(cmd, ctx, store); err != nil {
				return err
			}

			image, err := store.ImageByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dir := destDir
			if dir == "" {
				dir = cfg.Paths.DownloadDir
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloading %s (%s)...\n", image.Name, image.SizeHuman)

			tty := stdoutIsTerminal()
			lastLine := time.Time{}
			fetcher := fetch.NewFetcher(nil, ctx.ensureLogger())
			path, err := fetcher.Download(cmd.Context(), image, dir, func(p fetch.Progress) {
				percent := 0.0
				if p.TotalBytes > 0 {
					percent = float64(p.BytesDone) / float64(p.TotalBytes) * 100
				}
				if tty {
					fmt.Fprintf(out, "\rDownloading: %5.1f%% (%s/s)   ", percent, formatBytes(uint64(p.BytesPerSecond)))
					return
				}
				if time.Since(lastLine) < 2*time.Second && p.BytesDone != p.TotalBytes {
					return
				}
				lastLine = time.Now()
				fmt.Fprintf(out, "Downloading: %.1f%% (%s/s)\n", percent, formatBytes(uint64(p.BytesPerSecond)))
			})
			if tty {
				fmt.Fprintln(out)
			}
			if err != nil {
				return err
			}

			info, statErr := os.Stat(path)
			if statErr == nil {
				fmt.Fprintf(out, "Saved %s (%s)\n", path, formatBytes(uint64(info.Size())))
			} else {
				fmt.Fprintf(out, "Saved %s\n", path)
			}
			if image.SHA256 != "" {
				fmt.Fprintln(out, "Checksum verified.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&destDir, "dir", "", "Download directory (defaults to paths.download_dir)")
	return cmd
}
