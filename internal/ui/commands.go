package ui

import (
	"strconv"
	"strings"

	"summarai/internal/apperr"
	"summarai/internal/history"
)

// Command is a parsed slash command.
type Command struct {
	Name string
	Args []string
	// Raw is the text after the name, for paths with spaces.
	Raw string
	// Rest is the raw text after the first argument, for titles with spaces.
	Rest string
}

// ParseCommand splits a line starting with "/". ok is false for free text.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}

	fields := strings.Fields(line)
	cmd := Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
	if len(cmd.Args) > 0 {
		cmd.Raw = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		cmd.Rest = strings.TrimSpace(strings.TrimPrefix(cmd.Raw, cmd.Args[0]))
	}
	return cmd, true
}

// ResolveRef maps a 1-based position in items, or an item id, to an id.
func ResolveRef(ref string, items []history.Item) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return "", apperr.Validation("No history item at position " + ref + ".")
		}
		return items[n-1].ID, nil
	}
	for _, it := range items {
		if it.ID == ref {
			return it.ID, nil
		}
	}
	return "", apperr.InvalidState("No history item with id " + ref + ".")
}
