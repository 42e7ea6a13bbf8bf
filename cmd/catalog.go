package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
	"github.com/lehigh-university-libraries/flipbook/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the book catalog",
	}
	cmd.PersistentFlags().StringVar(&catalogPath, "catalog", "books.yaml", "Catalog file, YAML or JSON [env FLIPBOOK_CATALOG]")

	cmd.AddCommand(newCatalogListCmd(&catalogPath))
	cmd.AddCommand(newCatalogCheckCmd(&catalogPath))

	return cmd
}

func newCatalogListCmd(catalogPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the books in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := loadCatalog(cmd, *catalogPath)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(books.Books())
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tPAGES\tTITLE")
			for _, book := range books.Books() {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", book.Slug, book.PageCount, book.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")

	return cmd
}

func newCatalogCheckCmd(catalogPath *string) *cobra.Command {
	var (
		booksDir string
		imageExt string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify every book's page images and PDF",
		Long: `Checks that page-1 through page-N exist for every book in the catalog,
that each image decodes, and reports the page count of the book's PDF.
Exits with an error when any page image is missing or unreadable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("books-dir") {
				booksDir = envOr("FLIPBOOK_BOOKS_DIR", booksDir)
			}
			if !cmd.Flags().Changed("image-ext") {
				imageExt = envOr("FLIPBOOK_IMAGE_EXT", imageExt)
			}

			books, err := loadCatalog(cmd, *catalogPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, book := range books.Books() {
				report := assets.CheckBook(booksDir, imageExt, book)
				status := "ok"
				if !report.OK() {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(out, "%-4s %s (%d pages)\n", status, book.Slug, book.PageCount)
				if len(report.Missing) > 0 {
					fmt.Fprintf(out, "     missing pages: %v\n", report.Missing)
				}
				if len(report.Malformed) > 0 {
					fmt.Fprintf(out, "     unreadable pages: %v\n", report.Malformed)
				}
				switch {
				case report.PDFError != "":
					fmt.Fprintf(out, "     pdf: unavailable (%s)\n", report.PDFError)
				case report.PDFPages != book.PageCount:
					fmt.Fprintf(out, "     pdf: %d pages, catalog says %d\n", report.PDFPages, book.PageCount)
				default:
					fmt.Fprintf(out, "     pdf: %d pages\n", report.PDFPages)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d books failed the check", failed, books.Len())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&booksDir, "books-dir", "./public/books", "Directory with one folder of page images per book [env FLIPBOOK_BOOKS_DIR]")
	cmd.Flags().StringVar(&imageExt, "image-ext", assets.DefaultImageExt, "Page image extension (jpg or webp) [env FLIPBOOK_IMAGE_EXT]")

	return cmd
}

func loadCatalog(cmd *cobra.Command, path string) (*catalog.Catalog, error) {
	if !cmd.Flags().Changed("catalog") {
		path = envOr("FLIPBOOK_CATALOG", path)
	}
	return catalog.Load(path)
}
