// Package input synthesizes keyboard, scroll and script input on macOS.
package input

import (
	"fmt"
	"strings"
)

// Modifier flag bits as CGEventFlags.
const (
	FlagShift   uint64 = 0x00020000
	FlagControl uint64 = 0x00040000
	FlagOption  uint64 = 0x00080000
	FlagCommand uint64 = 0x00100000
)

var modifierFlags = map[string]uint64{
	"cmd":     FlagCommand,
	"command": FlagCommand,
	"shift":   FlagShift,
	"alt":     FlagOption,
	"option":  FlagOption,
	"ctrl":    FlagControl,
	"control": FlagControl,
}

// keyCodes holds ANSI-layout virtual key codes.
var keyCodes = map[string]int{
	"a": 0, "s": 1, "d": 2, "f": 3, "h": 4, "g": 5, "z": 6, "x": 7, "c": 8, "v": 9,
	"b": 11, "q": 12, "w": 13, "e": 14, "r": 15, "y": 16, "t": 17,
	"1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25, "7": 26, "8": 28, "0": 29,
	"o": 31, "u": 32, "i": 34, "p": 35, "l": 37, "j": 38, "k": 40, "n": 45, "m": 46,
	"return": 36, "enter": 36,
	"tab":    48,
	"space":  49,
	"delete": 51,
	"escape": 53, "esc": 53,
	"left": 123, "right": 124, "down": 125, "up": 126,
}

// KeyCombo is one key press with modifier flags held.
type KeyCombo struct {
	KeyCode int
	Flags   uint64
}

// ParseKeyCombo parses strings such as "cmd+shift+t". Every part must be
// known: an unknown modifier or key is an error, never dropped.
func ParseKeyCombo(combo string) (KeyCombo, error) {
	var parts []string
	for _, p := range strings.Split(strings.ToLower(combo), "+") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return KeyCombo{}, ErrEmptyCombo
	}

	var kc KeyCombo
	for _, mod := range parts[:len(parts)-1] {
		flag, ok := modifierFlags[mod]
		if !ok {
			return KeyCombo{}, fmt.Errorf("%w: %s", ErrUnknownModifier, mod)
		}
		kc.Flags |= flag
	}

	key := parts[len(parts)-1]
	code, ok := keyCodes[key]
	if !ok {
		return KeyCombo{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	kc.KeyCode = code
	return kc, nil
}
