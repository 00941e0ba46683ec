package transcript

import (
	"fmt"
	"time"
)

// headerSeparator follows every timestamp header in the rendered text and is
// collapsed by [FormatExport].
const headerSeparator = ": "

// FormatTimestamp renders d as "[MM:SS.mmm]". MM is the minutes component of
// the duration, so an hour-long transcript wraps back to 00.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	millis := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("[%02d:%02d.%03d]", minutes, seconds, millis)
}
