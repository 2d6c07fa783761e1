package admin

import (
	"fmt"
	"time"
)

// FormatBytes renders a byte count with one decimal in B, KB, MB, GB or TB.
func FormatBytes(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}

// FormatUptime renders d as "Xd Yh Zm".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	return fmt.Sprintf("%dd %dh %dm", days, hours, int(d/time.Minute))
}

// FormatDuration renders d as "Xm Ys".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// QueueProgress estimates pipeline progress at ten percent per minute, capped at 95.
func QueueProgress(elapsed time.Duration) (progress int, eta string) {
	progress = int(elapsed.Minutes() * 10)
	if progress > 95 {
		progress = 95
	}
	if progress < 0 {
		progress = 0
	}
	left := (100 - progress) / 10
	if left > 0 {
		return progress, fmt.Sprintf("%d min", left)
	}
	return progress, "< 1 min"
}
