package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"etch/internal/catalog"
)

func newImagesCommand(ctx *commandContext) *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Manage your own local image files",
	}

	imagesCmd.AddCommand(newImagesAddCommand(ctx))
	imagesCmd.AddCommand(newImagesListCommand(ctx))
	imagesCmd.AddCommand(newImagesRemoveCommand(ctx))

	return imagesCmd
}

func newImagesAddCommand(ctx *commandContext) *cobra.Command {
	var nameFlag string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a local image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve image path: %w", err)
			}
			info, err := statRegularFile(path)
			if err != nil {
				return err
			}

			name := nameFlag
			if name == "" {
				name = filepath.Base(path)
			}

			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			image := catalog.UserImage{
				ID:        uuid.New().String(),
				Name:      name,
				LocalPath: path,
				SizeBytes: info.Size(),
				AddedAt:   time.Now().UTC().Format(time.RFC3339),
			}
			if err := store.AddUserImage(cmd.Context(), image); err != nil {
				return err
			}

			platform := catalog.DetectPlatform(path)
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s, %s) as %s\n",
				name, formatBytes(uint64(info.Size())), platform.DisplayName(), image.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&nameFlag, "name", "", "Display name (defaults to the filename)")
	return cmd
}

func newImagesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered local images",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			images, err := store.ListUserImages(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{"images": images})
			}

			out := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintln(out, "No local images registered. Add one with `etch images add <path>`.")
				return nil
			}

			rows := make([][]string, 0, len(images))
			for _, image := range images {
				rows = append(rows, []string{
					image.ID,
					image.Name,
					catalog.DetectPlatform(image.LocalPath).DisplayName(),
					formatBytes(uint64(image.SizeBytes)),
					image.LocalPath,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Platform", "Size", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the image list as JSON")
	return cmd
}

func newImagesRemoveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <image-id>",
		Short: "Forget a registered local image (the file is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RemoveUserImage(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
	return cmd
}
