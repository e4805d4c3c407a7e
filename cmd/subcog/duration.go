package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTTLFlag accepts time.ParseDuration syntax plus the day suffix
// spec.md §6.2's --ttl examples use ("7d"), mirroring internal/mcp's
// parseTTL for the same flag semantics exposed as a CLI flag instead of a
// tool argument.
func parseTTLFlag(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day-suffixed ttl %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
