// Package export renders conversations for saving outside the client.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"summarai/internal/conversation"
	"summarai/internal/history"
)

// Entry pairs a history item with its stored transcript.
type Entry struct {
	Meta history.Item        `json:"meta"`
	Conv []conversation.Turn `json:"conv"`
}

// Transcript renders turns as "ROLE: text" blocks separated by blank lines.
func Transcript(turns []conversation.Turn) string {
	blocks := make([]string, 0, len(turns))
	for _, t := range turns {
		blocks = append(blocks, strings.ToUpper(string(t.Role))+": "+t.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// Bundle renders entries as an indented JSON array in the given order.
func Bundle(entries []Entry) ([]byte, error) {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Conv == nil {
			e.Conv = []conversation.Turn{}
		}
		out[i] = e
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}
	return data, nil
}

// TranscriptFileName names the transcript file for item.
func TranscriptFileName(item history.Item) string {
	name := item.Title
	if name == "" {
		name = item.ID
	}
	return sanitize(name) + "_chat.txt"
}

// BundleFileName names a bundle exported at now.
func BundleFileName(now time.Time) string {
	return fmt.Sprintf("chats_export_%d.json", now.UnixMilli())
}

// WriteFile writes data to dir/name atomically and returns the full path.
func WriteFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	target := filepath.Join(dir, name)
	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return target, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
}
