package ui

import "strings"

// truncate shortens a string to the given limit, adding ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// hexColor formats an RGBA badge color as #rrggbb. Alpha is dropped.
func hexColor(c [4]uint8) string {
	const digits = "0123456789abcdef"
	var b strings.Builder
	b.WriteByte('#')
	for _, v := range c[:3] {
		b.WriteByte(digits[v>>4])
		b.WriteByte(digits[v&0x0f])
	}
	return b.String()
}
