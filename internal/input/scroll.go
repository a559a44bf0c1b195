package input

import "strings"

const (
	DefaultScrollLines = 8
	MaxScrollLines     = 50
)

// Scroll is a line-unit scroll. Positive Vertical scrolls up, positive
// Horizontal scrolls left.
type Scroll struct {
	Vertical   int
	Horizontal int
}

// ParseScroll reads direction keywords and an optional magnitude from a
// target such as "down 3" or "scroll left". Vertical movement defaults to
// down; the magnitude defaults to DefaultScrollLines and is capped at
// MaxScrollLines.
func ParseScroll(target string) Scroll {
	t := strings.ToLower(target)
	if strings.TrimSpace(t) == "" {
		t = "down"
	}
	n := magnitude(t)

	s := Scroll{Vertical: -n}
	if strings.Contains(t, "up") {
		s.Vertical = n
	}
	switch {
	case strings.Contains(t, "left"):
		s.Horizontal = n
	case strings.Contains(t, "right"):
		s.Horizontal = -n
	}
	return s
}

// magnitude reads every digit in t as one number, so "1 0" is 10.
func magnitude(t string) int {
	v := 0
	seen := false
	for _, r := range t {
		if r < '0' || r > '9' {
			continue
		}
		seen = true
		v = v*10 + int(r-'0')
		if v > MaxScrollLines {
			return MaxScrollLines
		}
	}
	if !seen || v <= 0 {
		return DefaultScrollLines
	}
	return v
}
