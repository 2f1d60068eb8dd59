package history

import (
	"strings"
	"time"
)

// Item is an entry in the history catalogue: a processed video, an
// uploaded document, or a chat started locally.
type Item struct {
	ID        string    `json:"id"`
	URL       *string   `json:"url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Pinned    bool      `json:"pinned,omitempty"`
}

// Kind describes what an item refers to, for display.
type Kind string

const (
	KindVideo   Kind = "video"
	KindPDF     Kind = "pdf"
	KindWord    Kind = "doc"
	KindText    Kind = "txt"
	KindCSV     Kind = "csv"
	KindGeneric Kind = "file"
)

// DisplayTitle falls back to the url, then the id, when the title is empty.
func (it Item) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	if it.URL != nil && *it.URL != "" {
		return *it.URL
	}
	return it.ID
}

// Kind guesses the item's kind from its url and title.
func (it Item) Kind() Kind {
	title := strings.ToLower(it.Title)
	url := ""
	if it.URL != nil {
		url = strings.ToLower(*it.URL)
	}

	switch {
	case IsVideoLink(url):
		return KindVideo
	case strings.HasSuffix(title, ".pdf"):
		return KindPDF
	case strings.HasSuffix(title, ".doc"), strings.HasSuffix(title, ".docx"):
		return KindWord
	case strings.HasSuffix(title, ".txt"):
		return KindText
	case strings.HasSuffix(title, ".csv"):
		return KindCSV
	default:
		return KindGeneric
	}
}

// IsVideoLink reports whether text looks like a YouTube link.
func IsVideoLink(text string) bool {
	return strings.Contains(text, "youtube.com") || strings.Contains(text, "youtu.be")
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
