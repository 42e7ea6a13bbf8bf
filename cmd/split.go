package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/flipbook/internal/catalog"
	"github.com/lehigh-university-libraries/flipbook/internal/spreads"
	"github.com/lehigh-university-libraries/flipbook/internal/tools"
)

type splitFunc func(s *spreads.Splitter, ctx context.Context, dir string) (int, error)

// catalogUpdate holds the flags shared by the split commands
type catalogUpdate struct {
	path string
	slug string
}

func (u *catalogUpdate) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&u.path, "update-catalog", "", "Catalog file to write the new page count into")
	cmd.Flags().StringVar(&u.slug, "slug", "", "Book slug to update (with --update-catalog)")
	cmd.MarkFlagsRequiredTogether("update-catalog", "slug")
}

func runSplit(cmd *cobra.Command, dir string, threshold float64, update catalogUpdate, split splitFunc) error {
	magick, err := tools.NewImageMagick(tools.ExecRunner{})
	if err != nil {
		return reportMissingTool(cmd, err, "")
	}

	total, err := split(spreads.New(magick, threshold), cmd.Context(), dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Done! Created %d individual page images.\n", total)
	if update.path == "" {
		fmt.Fprintf(out, "Update books.json with pageCount: %d\n", total)
		return nil
	}
	if err := catalog.SetPageCount(update.path, update.slug, total); err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %s: %s pageCount %d\n", update.path, update.slug, total)
	return nil
}

func newSplitSpreadsCmd() *cobra.Command {
	var (
		threshold float64
		update    catalogUpdate
	)

	cmd := &cobra.Command{
		Use:   "split-spreads <input-dir>",
		Short: "Split two-page spread images into single pages",
		Long: `Renumbers the page-{n}.jpg or page-{n}.webp images in the directory from 1.
Images wider than the threshold ratio (width / height) are treated as
spreads and cropped into a left and a right page.

Requires ImageMagick.`,
		Example: `  flipbook split-spreads ./public/books/my-magazine
  flipbook split-spreads ./public/books/my-magazine --update-catalog books.yaml --slug my-magazine`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, args[0], threshold, update, (*spreads.Splitter).SplitSpreads)
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", spreads.DefaultThreshold, "Aspect ratio above which an image is a spread")
	update.bind(cmd)

	return cmd
}

func newSplitTempPagesCmd() *cobra.Command {
	var update catalogUpdate

	cmd := &cobra.Command{
		Use:   "split-temp-pages <input-dir>",
		Short: "Split every page-temp-{n} image into two pages",
		Long: `Splits each page-temp-{n}.jpg or page-temp-{n}.webp image in half and
numbers the halves after the highest existing page-{n} image. When the
directory has no page-{n} images yet, numbering starts at page-1. Each
temp image is removed once split.

Requires ImageMagick.`,
		Example: `  flipbook split-temp-pages ./public/books/my-magazine`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, args[0], 0, update, (*spreads.Splitter).SplitTempPages)
		},
	}

	update.bind(cmd)

	return cmd
}
