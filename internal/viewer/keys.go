package viewer

import "strings"

// KeyEvent is a keydown delivered to the viewer. Key uses the DOM key
// names (ArrowLeft, Escape, F11, f).
type KeyEvent struct {
	Key  string `json:"key"`
	Ctrl bool   `json:"ctrl,omitempty"`
	Meta bool   `json:"meta,omitempty"`
}

// KeyResult tells the caller what the viewer did with a key
type KeyResult struct {
	Handled bool `json:"handled"`
	// PreventDefault is set when the browser's own binding must be
	// suppressed
	PreventDefault bool `json:"prevent_default"`
}

type keyAction int

const (
	keyNone keyAction = iota
	keyPrevious
	keyNext
	keyToggleFullscreen
	keyExitFullscreen
)

func bindKey(ev KeyEvent) keyAction {
	switch {
	case ev.Key == "ArrowLeft":
		return keyPrevious
	case ev.Key == "ArrowRight":
		return keyNext
	case ev.Key == "F11":
		return keyToggleFullscreen
	case ev.Ctrl && strings.EqualFold(ev.Key, "f"):
		return keyToggleFullscreen
	case ev.Key == "Escape":
		return keyExitFullscreen
	}
	return keyNone
}
