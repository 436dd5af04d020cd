// Package units names byte-size constants and formats durations for log
// lines, the way the teacher's pkg/utils/units sizes Badger's block cache.
package units

import (
	"fmt"
	"time"
)

const (
	Kb = 1024
	Mb = 1024 * Kb
)

// Human renders a duration the way lease/heartbeat log lines want it:
// seconds with one decimal place from one second up, whole milliseconds
// below that.
func Human(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
