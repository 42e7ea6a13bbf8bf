package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/flipbook/internal/convert"
	"github.com/lehigh-university-libraries/flipbook/internal/tools"
)

func newConvertCmd() *cobra.Command {
	var (
		scale       float64
		quality     int
		engine      string
		concurrency int
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "convert <input.pdf> <output-dir>",
		Short: "Render every page of a PDF to page-{n}.jpg images",
		Long: `Renders each PDF page at 72 DPI times the scale and writes it as a JPEG
named page-1.jpg, page-2.jpg, ... in the output directory.

Rendering uses pdftoppm (poppler) when available and falls back to
ImageMagick.`,
		Example: `  flipbook convert ./my-book.pdf ./public/books/my-book

  # Or use ImageMagick directly
  magick -density 150 input.pdf -quality 90 public/books/my-book/page-%d.jpg`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, outputDir := args[0], args[1]

			eng, err := tools.ParseEngine(engine)
			if err != nil {
				return err
			}
			rasterizer, err := tools.NewRasterizer(tools.ExecRunner{}, eng)
			if err != nil {
				return reportMissingTool(cmd, err, fmt.Sprintf(
					"Or use ImageMagick directly:\n   magick -density 150 %s -quality 90 %s/page-%%d.jpg",
					inputPath, outputDir))
			}

			var progress io.Writer = os.Stderr
			if noProgress {
				progress = nil
			}
			c := convert.New(rasterizer, convert.Options{
				Scale:       scale,
				Quality:     quality,
				Concurrency: concurrency,
				Progress:    progress,
			})

			pages, err := c.Convert(cmd.Context(), inputPath, outputDir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Successfully converted %d pages to %s\n", pages, outputDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Update the catalog with pageCount: %d\n", pages)
			return nil
		},
	}

	cmd.Flags().Float64Var(&scale, "scale", convert.DefaultScale, "Render scale; 1.0 is 72 DPI")
	cmd.Flags().IntVar(&quality, "quality", convert.DefaultQuality, "JPEG quality (1-100)")
	cmd.Flags().StringVar(&engine, "engine", string(tools.EngineAuto), "Rasterizer (auto, pdftoppm or magick)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Pages rendered in parallel (0 uses one per CPU)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")

	return cmd
}

// reportMissingTool prints install instructions for a missing external
// tool to stderr. Other errors pass through unchanged.
func reportMissingTool(cmd *cobra.Command, err error, extra string) error {
	var missing *tools.MissingToolError
	if !errors.As(err, &missing) {
		return err
	}
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, missing.Remediation)
	if extra != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, extra)
	}
	return err
}
