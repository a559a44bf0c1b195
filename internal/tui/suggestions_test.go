package tui

import (
	"strings"
	"testing"

	"github.com/fentz26/orange/internal/models"
)

func TestSuggestions_Filter(t *testing.T) {
	s := NewSuggestions()

	s.Update("/c")
	if !s.IsVisible() {
		t.Fatal("expected suggestions for /c")
	}
	if got := s.Selected().Text; got != "/confirm" {
		t.Errorf("first match = %s, want /confirm", got)
	}
	s.Next()
	if got := s.Selected().Text; got != "/cancel" {
		t.Errorf("after Next = %s, want /cancel", got)
	}
	s.Next()
	if got := s.Selected().Text; got != "/confirm" {
		t.Errorf("Next should wrap, got %s", got)
	}
	s.Prev()
	if got := s.Selected().Text; got != "/cancel" {
		t.Errorf("Prev should wrap, got %s", got)
	}
}

func TestSuggestions_Hidden(t *testing.T) {
	s := NewSuggestions()
	for _, input := range []string{"", "open Safari", "/begin now", "/zzz"} {
		s.Update(input)
		if s.IsVisible() || s.Selected() != nil {
			t.Errorf("%q: suggestions should be hidden", input)
		}
		if s.Render(80) != "" {
			t.Errorf("%q: hidden suggestions should render empty", input)
		}
	}
}

func TestSuggestions_Render(t *testing.T) {
	s := NewSuggestions()
	s.Update("/")
	out := s.Render(80)
	if !strings.Contains(out, "/begin") || !strings.Contains(out, "more") {
		t.Errorf("render = %q", out)
	}
}

func TestFormatState(t *testing.T) {
	if got := formatState(""); !strings.Contains(got, "IDLE") {
		t.Errorf("empty state = %q", got)
	}
	if got := formatState(models.StateVerifying); !strings.Contains(got, "VERIFYING") {
		t.Errorf("verifying = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("hello world", 6); got != "hello…" {
		t.Errorf("truncate long = %q", got)
	}
}
