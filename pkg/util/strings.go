package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns def if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// NormalizeTokenKey trims and upper-cases a token symbol for display and lookups.
func NormalizeTokenKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
