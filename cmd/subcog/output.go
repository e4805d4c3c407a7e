package main

import (
	"encoding/json"
	"os"
	"strings"
)

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// splitCSV turns a "--tags a,b,c" flag value into its parts, dropping empty
// entries so a trailing comma or bare --tags "" doesn't produce a spurious
// empty tag.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
