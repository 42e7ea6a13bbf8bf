package download

import (
	"math"
	"strconv"
)

// UnknownSizeLabel is shown when the size of the asset could not be probed
const UnknownSizeLabel = "Unknown size"

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with a 1024 radix, rounded to two
// decimals with trailing zeros dropped: 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return UnknownSizeLabel
	}
	if bytes == 0 {
		return "0 Bytes"
	}

	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}
	value = math.Round(value*100) / 100

	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}
