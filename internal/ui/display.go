// Package ui renders the workspace in the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"summarai/internal/conversation"
	"summarai/internal/gateway"
	"summarai/internal/history"
	"summarai/internal/session"
)

// OfflineLabel marks answers synthesized while the backend was unreachable.
const OfflineLabel = "(offline)"

// Color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Display prints the workspace to out.
type Display struct {
	out      io.Writer
	width    int
	color    bool
	dark     bool
	renderer *glamour.TermRenderer
}

// NewDisplay creates a display. Colors and markdown styling are only used
// when out is a terminal.
func NewDisplay(out io.Writer, dark bool) *Display {
	d := &Display{out: out, width: 80}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.color = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			d.width = w
		}
	}
	d.SetDark(dark)
	return d
}

// SetDark switches the markdown style.
func (d *Display) SetDark(dark bool) {
	d.dark = dark
	style := "light"
	switch {
	case !d.color:
		style = "notty"
	case dark:
		style = "dark"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(d.width-10),
	)
	if err != nil {
		renderer = nil
	}
	d.renderer = renderer
}

func (d *Display) paint(color, text string) string {
	if !d.color {
		return text
	}
	return color + text + colorReset
}

// PrintWelcome displays the banner
func (d *Display) PrintWelcome(backendURL string) {
	fmt.Fprintln(d.out, d.paint(colorBold+colorCyan, "SummarAI - chat with your videos and documents"))
	fmt.Fprintln(d.out, d.paint(colorGray, "Backend: "+backendURL))
	fmt.Fprintln(d.out, d.paint(colorGray, "Type /help for commands or /exit to quit"))
	fmt.Fprintln(d.out)
}

// PrintAuthHelp lists the commands available before login.
func (d *Display) PrintAuthHelp() {
	fmt.Fprintln(d.out, "Sign in to continue:")
	fmt.Fprintln(d.out, "  /login    sign in with email and password")
	fmt.Fprintln(d.out, "  /signup   create an account")
	fmt.Fprintln(d.out, "  /exit     quit")
}

// PrintHelp lists the workspace commands.
func (d *Display) PrintHelp() {
	lines := [][2]string{
		{"<youtube link>", "process a video"},
		{"<question>", "ask about the selected item"},
		{"/new", "start a new chat"},
		{"/upload <path|@name>", "upload a document"},
		{"/list", "show history"},
		{"/select <n|id>", "open a history item"},
		{"/deselect", "close the current item"},
		{"/show", "print the current conversation"},
		{"/rename <n|id> <title>", "rename an item"},
		{"/pin <n|id>", "pin or unpin an item"},
		{"/delete <n|id>", "delete an item and its chat"},
		{"/clear", "delete all history"},
		{"/export", "save the current chat as text"},
		{"/export-selected <n|id>...", "save chats as a JSON bundle"},
		{"/dark", "toggle dark mode"},
		{"/logout", "sign out"},
		{"/exit", "quit"},
	}
	for _, l := range lines {
		fmt.Fprintf(d.out, "  %-28s %s\n", l[0], d.paint(colorGray, l[1]))
	}
}

// PrintPrompt displays the input prompt with the user and selection.
func (d *Display) PrintPrompt(user session.Identity, selected string) {
	label := user.Username
	if selected != "" {
		label += " · " + truncate(selected, 24)
	}
	fmt.Fprintf(d.out, "\n%s %s ", d.paint(colorGray, label), d.paint(colorBold+colorGreen, ">"))
}

// PrintHistory lists items with their position, which /select accepts.
func (d *Display) PrintHistory(items []history.Item, selected string) {
	if len(items) == 0 {
		d.PrintInfo("No history yet. Paste a YouTube link or /upload a file.")
		return
	}
	for i, it := range items {
		marker := " "
		if it.ID == selected {
			marker = "*"
		}
		pin := " "
		if it.Pinned {
			pin = "📌"
		}
		fmt.Fprintf(d.out, "%s%3d. %s %-5s %s %s\n",
			marker, i+1, pin, it.Kind(),
			truncate(it.DisplayTitle(), 50),
			d.paint(colorGray, it.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
}

// PrintConversation prints every turn of a transcript.
func (d *Display) PrintConversation(turns []conversation.Turn) {
	for _, t := range turns {
		if t.Role == conversation.RoleUser {
			fmt.Fprintf(d.out, "\n%s %s\n", d.paint(colorGray, "You:"), t.Text)
			continue
		}
		d.printAssistant(t.Text, "")
	}
}

// PrintAnswer prints an answer with its sources, labelled when offline.
func (d *Display) PrintAnswer(text string, sources []gateway.Citation, origin gateway.Origin) {
	label := ""
	if origin == gateway.Fallback {
		label = OfflineLabel
	}
	d.printAssistant(text, label)

	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(d.out, d.paint(colorGray, "Sources:"))
	for _, s := range sources {
		fmt.Fprintf(d.out, "  %s %s\n", d.paint(colorGray, formatSpan(s)), truncate(strings.Join(strings.Fields(s.Text), " "), 80))
	}
}

func (d *Display) printAssistant(text, label string) {
	header := "Assistant:"
	if label != "" {
		header += " " + label
	}
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, d.paint(colorBlue, header))

	if d.renderer != nil {
		if rendered, err := d.renderer.Render(text); err == nil {
			fmt.Fprintln(d.out, strings.TrimRight(rendered, "\n"))
			return
		}
	}
	fmt.Fprintln(d.out, text)
}

// PrintFileSuggestions lists files matching an @ reference.
func (d *Display) PrintFileSuggestions(partial string, matches []string) {
	fmt.Fprintf(d.out, "\n💡 File suggestions for '@%s':\n", partial)
	for i, match := range matches {
		if i == 10 { // Show max 10 suggestions
			break
		}
		fmt.Fprintf(d.out, "   @%s\n", match)
	}
}

// PrintInfo displays info message
func (d *Display) PrintInfo(msg string) {
	fmt.Fprintln(d.out, d.paint(colorCyan, "ℹ "+msg))
}

// PrintWarning displays warning message
func (d *Display) PrintWarning(msg string) {
	fmt.Fprintln(d.out, d.paint(colorYellow, "⚠ "+msg))
}

// PrintError displays error message
func (d *Display) PrintError(msg string) {
	fmt.Fprintln(d.out, d.paint(colorRed, "✗ "+msg))
}

// PrintSuccess displays success message, labelled when offline.
func (d *Display) PrintSuccess(msg string, origin gateway.Origin) {
	if origin == gateway.Fallback {
		msg += " " + OfflineLabel
	}
	fmt.Fprintln(d.out, d.paint(colorGreen, "✓ "+msg))
}

// PrintGoodbye displays goodbye message
func (d *Display) PrintGoodbye() {
	fmt.Fprintln(d.out, d.paint(colorDim, "\nGoodbye!"))
}

func formatSpan(s gateway.Citation) string {
	if s.Start == nil {
		return "•"
	}
	span := formatSeconds(*s.Start)
	if s.End != nil {
		span += "-" + formatSeconds(*s.End)
	}
	return "[" + span + "]"
}

func formatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	m := int(d.Minutes())
	return fmt.Sprintf("%d:%02d", m, int(d.Seconds())-m*60)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
