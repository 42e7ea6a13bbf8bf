package viewer

import (
	"errors"
	"fmt"
)

// ErrCapabilityUnavailable is returned when the platform refuses a
// presentation request such as entering native fullscreen
var ErrCapabilityUnavailable = errors.New("viewer: capability unavailable")

// FullscreenPlatform is the browser's native fullscreen capability.
// Implementations report state changes back through Viewer.FullscreenChanged
// and must not call into the Viewer from these methods.
type FullscreenPlatform interface {
	SupportsFullscreen() bool
	RequestFullscreen() error
	ExitFullscreen() error
	IsFullscreen() bool
}

// Presentation controls how the viewer container is laid out in the page
type Presentation interface {
	// SetMaximized pins the viewer container over the whole viewport
	SetMaximized(on bool)
	ScrollToTop()
	// SetScrollLocked disables scrolling of the surrounding document
	SetScrollLocked(on bool)
}

// FullscreenMode names the strategy chosen at mount
type FullscreenMode string

const (
	FullscreenNative   FullscreenMode = "native"
	FullscreenEmulated FullscreenMode = "emulated"
)

type fullscreenStrategy interface {
	enter() error
	exit() error
	active() bool
	mode() FullscreenMode
}

// selectFullscreen picks emulation on iOS, where the native API does not
// apply to arbitrary elements, and wherever the platform lacks support
func selectFullscreen(env Environment, platform FullscreenPlatform, pres Presentation) fullscreenStrategy {
	if env.IOS || platform == nil || !platform.SupportsFullscreen() {
		return &emulatedFullscreen{pres: pres}
	}
	return &nativeFullscreen{platform: platform}
}

type nativeFullscreen struct {
	platform FullscreenPlatform
}

func (n *nativeFullscreen) enter() error {
	if err := n.platform.RequestFullscreen(); err != nil {
		return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	return nil
}

func (n *nativeFullscreen) exit() error {
	if !n.platform.IsFullscreen() {
		return nil
	}
	if err := n.platform.ExitFullscreen(); err != nil {
		return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	return nil
}

func (n *nativeFullscreen) active() bool { return n.platform.IsFullscreen() }

func (n *nativeFullscreen) mode() FullscreenMode { return FullscreenNative }

// emulatedFullscreen owns its state since no platform event reports it
type emulatedFullscreen struct {
	pres Presentation
	on   bool
}

func (e *emulatedFullscreen) enter() error {
	if e.on {
		return nil
	}
	e.on = true
	e.pres.SetMaximized(true)
	e.pres.ScrollToTop()
	return nil
}

func (e *emulatedFullscreen) exit() error {
	if !e.on {
		return nil
	}
	e.on = false
	e.pres.SetMaximized(false)
	return nil
}

func (e *emulatedFullscreen) active() bool { return e.on }

func (e *emulatedFullscreen) mode() FullscreenMode { return FullscreenEmulated }
