package shell

import (
	"os"
	"path/filepath"
	"strings"
)

// newlineSymbol stands for a line break inside a multi-line history entry,
// so that every entry fits on one line of the history file.
const newlineSymbol = "␤"

// loadHistory loads history from a file. Missing or unreadable files give
// an empty history.
func loadHistory(filename string) []string {
	if filename == "" {
		return []string{}
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return []string{}
	}

	var history []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		history = append(history, strings.ReplaceAll(line, newlineSymbol, "\n"))
	}

	return history
}

// saveHistory writes the newest size entries of history to a file.
func saveHistory(filename string, history []string, size int) error {
	if filename == "" || len(history) == 0 {
		return nil
	}
	if size > 0 && len(history) > size {
		history = history[len(history)-size:]
	}

	var b strings.Builder
	for _, entry := range history {
		b.WriteString(strings.ReplaceAll(entry, "\n", newlineSymbol))
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(b.String()), 0644)
}
