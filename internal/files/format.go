package files

import (
	"fmt"
	"time"
)

// TimeLayout is the local-time format used in listings
const TimeLayout = "2006-01-02 15:04"

// FormatSize formats bytes with binary units
func FormatSize(size int64) string {
	const unit = 1024
	switch {
	case size < 0:
		return "-"
	case size < unit:
		return fmt.Sprintf("%d B", size)
	case size < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(size)/unit)
	case size < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", float64(size)/(unit*unit))
	default:
		return fmt.Sprintf("%.2f GB", float64(size)/(unit*unit*unit))
	}
}

// FormatTime renders a modification time in local time, or "-" when unknown
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(TimeLayout)
}
