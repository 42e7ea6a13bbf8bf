package viewer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/flipbook/internal/download"
	"github.com/lehigh-university-libraries/flipbook/internal/models"
)

// DownloadMode selects how the download control behaves
type DownloadMode string

const (
	// DownloadConfirm probes the file size and asks before downloading
	DownloadConfirm DownloadMode = "confirm"
	// DownloadDirect starts the download immediately
	DownloadDirect DownloadMode = "direct"
)

// ParseDownloadMode accepts confirm or direct. Empty selects confirm.
func ParseDownloadMode(s string) (DownloadMode, error) {
	switch DownloadMode(s) {
	case "", DownloadConfirm:
		return DownloadConfirm, nil
	case DownloadDirect:
		return DownloadDirect, nil
	}
	return "", fmt.Errorf("unknown download mode %q", s)
}

// Anchor starts a browser download of url saved as filename
type Anchor interface {
	Trigger(url, filename string) error
}

// PressDownload runs the download control. In confirm mode it probes the
// size first and then opens the dialog; a second press while the probe is
// in flight is ignored.
func (v *Viewer) PressDownload(ctx context.Context) {
	v.mu.Lock()
	if v.closed || v.dialog.IsFetchingSize || v.dialog.Visible {
		v.mu.Unlock()
		return
	}
	v.vibrate()

	if v.cfg.DownloadMode == DownloadDirect {
		v.triggerDownload()
		v.mu.Unlock()
		return
	}

	v.dialog = models.DownloadDialogState{IsFetchingSize: true}
	url := v.cfg.PDFURL
	v.mu.Unlock()
	v.notify()

	label := download.UnknownSizeLabel
	if v.deps.Prober != nil {
		size, err := v.deps.Prober.Probe(ctx, url)
		if err != nil {
			slog.Warn("Error fetching file size", "book", v.book.Slug, "url", url, "err", err)
		} else {
			label = download.FormatFileSize(size)
		}
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.dialog = models.DownloadDialogState{Visible: true, FileSizeLabel: label}
	v.mu.Unlock()
	v.notify()
}

// ConfirmDownload starts the download and closes the dialog. It reports
// false when no dialog was open.
func (v *Viewer) ConfirmDownload() bool {
	v.mu.Lock()
	if v.closed || !v.dialog.Visible {
		v.mu.Unlock()
		return false
	}
	v.triggerDownload()
	v.dialog = models.DownloadDialogState{}
	v.mu.Unlock()
	v.notify()
	return true
}

// CancelDownload closes the dialog without downloading
func (v *Viewer) CancelDownload() {
	v.mu.Lock()
	if v.closed || !v.dialog.Visible {
		v.mu.Unlock()
		return
	}
	v.dialog = models.DownloadDialogState{}
	v.mu.Unlock()
	v.notify()
}

// must hold v.mu
func (v *Viewer) triggerDownload() {
	if v.deps.Anchor == nil {
		slog.Warn("No download anchor configured", "book", v.book.Slug)
		return
	}
	if err := v.deps.Anchor.Trigger(v.cfg.PDFURL, v.cfg.DownloadFilename); err != nil {
		slog.Error("Failed to start download", "book", v.book.Slug, "err", err)
	}
}
