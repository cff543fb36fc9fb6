package search

import (
	"fmt"
	"os"
	"strings"
)

// Snippet returns the lines around centerLine of a file, with the matched
// line marked. Returns an empty string when the file cannot be read.
func Snippet(path string, centerLine, radius int) string {
	if centerLine < 1 {
		return ""
	}
	if radius < 0 {
		radius = 0
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	lines := strings.Split(string(data), "\n")
	start := centerLine - radius
	if start < 1 {
		start = 1
	}
	end := centerLine + radius
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		prefix := "  "
		if i == centerLine {
			prefix = ">>"
		}
		fmt.Fprintf(&b, "%s %5d: %s\n", prefix, i, strings.TrimRight(lines[i-1], "\r"))
	}

	return strings.TrimSuffix(b.String(), "\n")
}
