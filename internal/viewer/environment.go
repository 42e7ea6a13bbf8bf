package viewer

import (
	"regexp"

	"github.com/lehigh-university-libraries/flipbook/internal/models"
)

// MobileBreakpoint is the viewport width below which the viewer is treated
// as mobile regardless of the user agent
const MobileBreakpoint = 768

var (
	mobileUserAgent = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)
	iosUserAgent    = regexp.MustCompile(`iPhone|iPad|iPod`)
)

// Environment is the device class of the browser hosting the viewer
type Environment struct {
	Mobile bool
	IOS    bool
}

// Classify derives the device class from the viewport and user agent. It
// is cheap and idempotent, so callers re-run it on every resize.
func Classify(size models.ViewportSize, userAgent string) Environment {
	return Environment{
		Mobile: size.Width < MobileBreakpoint || mobileUserAgent.MatchString(userAgent),
		IOS:    iosUserAgent.MatchString(userAgent),
	}
}
