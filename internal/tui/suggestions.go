package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for slash commands.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
}

var commandSuggestions = []SuggestionItem{
	{Text: "/begin", Description: "Start recording a spoken command"},
	{Text: "/stop", Description: "Stop recording and plan"},
	{Text: "/confirm", Description: "Approve the shown prompts and run the plan"},
	{Text: "/cancel", Description: "Cancel the current command"},
	{Text: "/reset", Description: "Start over with a new session"},
	{Text: "/decisions", Description: "Show this session's safety decisions"},
	{Text: "/history", Description: "Show recent sessions"},
	{Text: "/quit", Description: "Leave the console"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{items: commandSuggestions}
}

// Update updates suggestions based on current input. Only input starting
// with "/" and holding no space yet shows the dropdown.
func (s *Suggestions) Update(input string) {
	if !strings.HasPrefix(input, "/") || strings.Contains(input, " ") {
		s.visible = false
		s.filtered = nil
		return
	}
	s.visible = true
	s.filter(strings.ToLower(input))
}

func (s *Suggestions) filter(query string) {
	s.filtered = s.filtered[:0]
	for _, item := range s.items {
		if strings.HasPrefix(item.Text, query) {
			s.filtered = append(s.filtered, item)
		}
	}
	if s.selectedIdx >= len(s.filtered) {
		s.selectedIdx = 0
	}
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.IsVisible() || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))

	descStyle := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}
		if i == s.selectedIdx {
			b.WriteString(selectedStyle.Render("▶ "+item.Text) + " " + selectedStyle.Render(item.Description))
		} else {
			b.WriteString("  " + item.Text + " " + descStyle.Render(item.Description))
		}
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
