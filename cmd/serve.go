package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
	"github.com/lehigh-university-libraries/flipbook/internal/catalog"
	"github.com/lehigh-university-libraries/flipbook/internal/download"
	"github.com/lehigh-university-libraries/flipbook/internal/handlers"
	"github.com/lehigh-university-libraries/flipbook/internal/storage"
	"github.com/lehigh-university-libraries/flipbook/internal/viewer"
)

func newServeCmd() *cobra.Command {
	var (
		port            string
		catalogPath     string
		booksDir        string
		imageExt        string
		downloadMode    string
		assetBaseURL    string
		sessionTTL      time.Duration
		eventsPerMinute int
		sessionsPerMin  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the flipbook web viewer",
		Long: `Starts the flipbook viewer on the specified port.

Every book in the catalog is served at /book/{slug} with its page images
and PDF under /books/{slug}/. The JSON API under /api exposes the catalog
and the server-side viewer sessions the page drives.`,
		Example: `  # Start server on default port 8080
  flipbook serve --catalog books.yaml --books-dir ./public/books

  # Serve page images from a CDN and skip the download confirmation
  flipbook serve --asset-base-url https://cdn.example.edu --download-mode direct`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("port") {
				port = envOr("PORT", port)
			}
			if !flags.Changed("catalog") {
				catalogPath = envOr("FLIPBOOK_CATALOG", catalogPath)
			}
			if !flags.Changed("books-dir") {
				booksDir = envOr("FLIPBOOK_BOOKS_DIR", booksDir)
			}
			if !flags.Changed("image-ext") {
				imageExt = envOr("FLIPBOOK_IMAGE_EXT", imageExt)
			}
			if !flags.Changed("download-mode") {
				downloadMode = envOr("FLIPBOOK_DOWNLOAD_MODE", downloadMode)
			}
			if !flags.Changed("asset-base-url") {
				assetBaseURL = envOr("FLIPBOOK_ASSET_BASE_URL", assetBaseURL)
			}
			if _, err := strconv.Atoi(port); err != nil {
				return fmt.Errorf("invalid port %q", port)
			}

			mode, err := viewer.ParseDownloadMode(downloadMode)
			if err != nil {
				return err
			}

			books, err := catalog.Load(catalogPath)
			if err != nil {
				return err
			}
			resolver, err := assets.NewResolver(assets.Options{
				ImageExt: imageExt,
				BaseURL:  assetBaseURL,
			})
			if err != nil {
				return err
			}

			var prober download.Prober = &download.FileProber{Root: booksDir}
			if assetBaseURL != "" {
				prober = download.NewHTTPProber(assetBaseURL)
			}

			sessions := storage.New(sessionTTL, storage.DefaultCleanupInterval)
			defer sessions.Flush()

			handler, err := handlers.New(handlers.Config{
				Catalog:           books,
				Resolver:          resolver,
				Sessions:          sessions,
				BooksDir:          booksDir,
				Prober:            prober,
				DownloadMode:      mode,
				EventsPerMinute:   eventsPerMinute,
				SessionsPerMinute: sessionsPerMin,
			})
			if err != nil {
				return err
			}

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Flipbook viewer available",
					"addr", addr,
					"url", "http://localhost"+addr,
					"books", books.Len(),
					"download_mode", mode)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped", "open_sessions", sessions.Len())
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to listen on [env PORT]")
	cmd.Flags().StringVar(&catalogPath, "catalog", "books.yaml", "Catalog file, YAML or JSON [env FLIPBOOK_CATALOG]")
	cmd.Flags().StringVar(&booksDir, "books-dir", "./public/books", "Directory with one folder of page images per book [env FLIPBOOK_BOOKS_DIR]")
	cmd.Flags().StringVar(&imageExt, "image-ext", assets.DefaultImageExt, "Page image extension (jpg or webp) [env FLIPBOOK_IMAGE_EXT]")
	cmd.Flags().StringVar(&downloadMode, "download-mode", string(viewer.DownloadConfirm), "PDF download flow (confirm or direct) [env FLIPBOOK_DOWNLOAD_MODE]")
	cmd.Flags().StringVar(&assetBaseURL, "asset-base-url", "", "Origin serving page images and PDFs, e.g. a CDN [env FLIPBOOK_ASSET_BASE_URL]")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", storage.DefaultTTL, "Idle time before a viewer session is closed")
	cmd.Flags().IntVar(&eventsPerMinute, "events-per-minute", 600, "Button, key and page events accepted per viewer session per minute; pointer moves and resizes are not counted (0 disables the limit)")
	cmd.Flags().IntVar(&sessionsPerMin, "sessions-per-minute", 60, "Viewer sessions a client IP may open per minute (0 disables the limit)")

	return cmd
}
