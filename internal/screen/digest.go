package screen

import (
	"strings"
	"unicode/utf8"

	"github.com/fentz26/orange/internal/models"
)

// MaxDigestSummary caps the accessibility summary carried in a digest.
const MaxDigestSummary = 600

// Digest reduces sc to a short single-string description for verification.
// The screenshot is never included.
func Digest(sc models.ScreenContext) string {
	var parts []string
	add := func(key, val string) {
		if val = strings.TrimSpace(val); val != "" {
			parts = append(parts, key+"="+val)
		}
	}
	add("app", sc.App.Name)
	add("bundle", sc.App.BundleID)
	add("window", sc.App.WindowTitle)
	add("url", sc.App.URL)
	add("ax", truncate(sc.AXTreeSummary, MaxDigestSummary))
	return strings.Join(parts, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
