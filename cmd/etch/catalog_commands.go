package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"etch/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the downloadable image catalog",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogSearchCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	catalogCmd.AddCommand(newCatalogRefreshCommand(ctx))

	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var categoryFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog images",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := refreshIfStale(cmd, ctx, store); err != nil {
				return err
			}

			images, err := store.ListImages(cmd.Context(), catalog.Category(categoryFlag))
			if err != nil {
				return err
			}
			return printImages(cmd, images, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&categoryFlag, "category", "", "Filter by category (ubuntu, fedora, mint, debian, arch, other)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the image list as JSON")
	return cmd
}

func newCatalogSearchCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search catalog images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := refreshIfStale(cmd, ctx, store); err != nil {
				return err
			}

			images, err := store.SearchImages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printImages(cmd, images, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the results as JSON")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <image-id>",
		Short: "Show one catalog image in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			image, err := store.ImageByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", image.ID)
			fmt.Fprintf(out, "Name:        %s\n", image.Name)
			fmt.Fprintf(out, "Version:     %s\n", image.Version)
			fmt.Fprintf(out, "Category:    %s\n", image.Category.DisplayName())
			fmt.Fprintf(out, "Size:        %s\n", image.SizeHuman)
			fmt.Fprintf(out, "Verified:    %s\n", yesNo(image.Verified))
			fmt.Fprintf(out, "URL:         %s\n", image.DownloadURL)
			if image.SHA256 != "" {
				fmt.Fprintf(out, "SHA-256:     %s\n", image.SHA256)
			}
			if image.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", image.Description)
			}

			mirrors, err := store.MirrorsFor(cmd.Context(), image.ID)
			if err != nil {
				return err
			}
			for _, mirror := range mirrors {
				fmt.Fprintf(out, "Mirror:      %s (%s, %s)\n", mirror.URL, mirror.Region, mirror.Status)
			}
			return nil
		},
	}
	return cmd
}

func newCatalogRefreshCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-download the catalog now",
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

			doc, err := store.Refresh(cmd.Context(), nil, cfg.Catalog.URL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog refreshed: %d images (published %s).\n",
				len(doc.Images), doc.LastUpdated)
			return nil
		},
	}
	return cmd
}

// refreshIfStale transparently refreshes the cache when it is older than the
// configured window. Failures are reported but not fatal: a stale catalog
// still beats no catalog.
func refreshIfStale(cmd *cobra.Command, ctx *commandContext, store *catalog.Store) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	maxAge := time.Duration(cfg.Catalog.RefreshHours) * time.Hour
	stale, err := store.NeedsRefresh(cmd.Context(), maxAge)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}

	if _, err := store.Refresh(cmd.Context(), nil, cfg.Catalog.URL); err != nil {
		count, countErr := store.CountImages(cmd.Context())
		if countErr != nil || count == 0 {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: catalog refresh failed (%v); using cached entries\n", err)
	}
	return nil
}

func printImages(cmd *cobra.Command, images []catalog.Image, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, map[string]any{"images": images})
	}

	out := cmd.OutOrStdout()
	if len(images) == 0 {
		fmt.Fprintln(out, "No images found.")
		return nil
	}

	rows := make([][]string, 0, len(images))
	for _, image := range images {
		rows = append(rows, []string{
			image.ID,
			image.Name,
			image.Version,
			image.Category.DisplayName(),
			image.SizeHuman,
			yesNo(image.Verified),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Name", "Version", "Category", "Size", "Verified"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}
