package playback

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as M:SS. Values that are not a finite,
// non-negative number render as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}

	mins := int64(math.Floor(seconds / 60))
	secs := int64(math.Floor(math.Mod(seconds, 60)))

	return fmt.Sprintf("%d:%02d", mins, secs)
}
