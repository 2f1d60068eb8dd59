package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Input reads lines from the user. One Input must be shared for the whole
// session so buffered text isn't lost between reads.
type Input struct {
	reader *bufio.Reader
	fd     int
	tty    bool
	out    io.Writer
}

// NewInput reads from in. Password prompts hide typing when in is a terminal.
func NewInput(in io.Reader, out io.Writer) *Input {
	i := &Input{reader: bufio.NewReader(in), fd: -1, out: out}
	if f, ok := in.(*os.File); ok {
		i.fd = int(f.Fd())
		i.tty = term.IsTerminal(i.fd)
	}
	return i
}

// ReadLine reads a line of input from the user
func (i *Input) ReadLine() (string, error) {
	input, err := i.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && input != "" {
			return strings.TrimSpace(input), nil
		}
		return "", err
	}

	// Trim whitespace and newline
	return strings.TrimSpace(input), nil
}

// Prompt prints label and reads the answer.
func (i *Input) Prompt(label string) (string, error) {
	fmt.Fprint(i.out, label)
	return i.ReadLine()
}

// Password prints label and reads a secret without echoing it.
func (i *Input) Password(label string) (string, error) {
	fmt.Fprint(i.out, label)
	if !i.tty {
		line, err := i.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	secret, err := term.ReadPassword(i.fd)
	fmt.Fprintln(i.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// FindMatchingFiles searches for files matching the partial path after @
func FindMatchingFiles(workingDir string, partial string) []string {
	matches := []string{}

	// Determine search directory and pattern
	searchDir := workingDir
	pattern := strings.ToLower(partial)

	if strings.Contains(partial, "/") {
		dir, file := filepath.Split(partial)
		searchDir = filepath.Join(workingDir, dir)
		pattern = strings.ToLower(file)
	}

	_ = filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		relPath, err := filepath.Rel(workingDir, path)
		if err != nil || relPath == "." {
			return nil
		}

		// Skip hidden files and directories
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			relPathLower := strings.ToLower(relPath)
			isMatch := pattern == "" ||
				strings.Contains(relPathLower, pattern) ||
				strings.Contains(strings.ToLower(info.Name()), pattern)

			if isMatch && len(matches) < 100 {
				matches = append(matches, relPath)
			}
		}

		// Limit depth to avoid scanning too deep
		if info.IsDir() && strings.Count(relPath, string(filepath.Separator)) >= 4 {
			return filepath.SkipDir
		}
		return nil
	})

	return matches
}

// ExpandFileRef turns "@partial" into a path when exactly one file matches.
// Anything else is returned unchanged along with the candidates found.
func ExpandFileRef(workingDir, arg string) (string, []string) {
	if !strings.HasPrefix(arg, "@") {
		return arg, nil
	}
	partial := strings.Trim(strings.TrimPrefix(arg, "@"), "\"'")
	matches := FindMatchingFiles(workingDir, partial)
	for _, m := range matches {
		if m == partial {
			return filepath.Join(workingDir, m), nil
		}
	}
	if len(matches) == 1 {
		return filepath.Join(workingDir, matches[0]), nil
	}
	return partial, matches
}
