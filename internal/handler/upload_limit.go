package handler

import "strconv"

// formatUploadLimit renders a byte limit for error messages, in MB when it is
// at least one megabyte and in KB otherwise.
func formatUploadLimit(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case bytes <= 0:
		return "0KB"
	case bytes < mb:
		value := bytes / kb
		if value <= 0 {
			value = 1
		}
		return strconv.FormatInt(value, 10) + "KB"
	default:
		return strconv.FormatInt(bytes/mb, 10) + "MB"
	}
}
