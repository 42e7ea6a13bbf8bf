package viewer

import "time"

// FlipEngine is the page-turn renderer. The viewer only issues commands and
// listens for page changes; implementations must deliver page changes from
// outside the command call.
type FlipEngine interface {
	FlipNext()
	FlipPrevious()
	// OnPageChanged registers the page-changed listener and returns the
	// function that removes it
	OnPageChanged(func(index int)) (unsubscribe func())
}

// EngineOptions configures the page-flip renderer on the client
type EngineOptions struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	MinWidth         int     `json:"minWidth"`
	MaxWidth         int     `json:"maxWidth"`
	MinHeight        int     `json:"minHeight"`
	MaxHeight        int     `json:"maxHeight"`
	Size             string  `json:"size"`
	ShowCover        bool    `json:"showCover"`
	UsePortrait      bool    `json:"usePortrait"`
	AutoSize         bool    `json:"autoSize"`
	DrawShadow       bool    `json:"drawShadow"`
	MaxShadowOpacity float64 `json:"maxShadowOpacity"`
	ShowPageCorners  bool    `json:"showPageCorners"`
	MobileScroll     bool    `json:"mobileScrollSupport"`
	UseMouseEvents   bool    `json:"useMouseEvents"`
	FlippingTimeMS   int64   `json:"flippingTime"`
	SwipeDistance    int     `json:"swipeDistance"`
	StartPage        int     `json:"startPage"`
}

// FlipDuration is the page-turn animation time
func (o EngineOptions) FlipDuration() time.Duration {
	return time.Duration(o.FlippingTimeMS) * time.Millisecond
}

// DefaultEngineOptions are the renderer settings the viewer is designed for.
// Swipe gestures are handled by the engine with a 30px minimum travel.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Width:            550,
		Height:           733,
		MinWidth:         315,
		MaxWidth:         1000,
		MinHeight:        420,
		MaxHeight:        1350,
		Size:             "stretch",
		ShowCover:        true,
		UsePortrait:      true,
		AutoSize:         true,
		DrawShadow:       true,
		MaxShadowOpacity: 0.5,
		ShowPageCorners:  true,
		MobileScroll:     true,
		UseMouseEvents:   true,
		FlippingTimeMS:   1000,
		SwipeDistance:    30,
		StartPage:        0,
	}
}
