// Package issuelog appends validation issues to a plain-text log file.
package issuelog

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath is where issues go when no destination is configured.
const DefaultPath = "logs/issues.log"

// Append writes each issue as one line at the end of path, creating the file
// if needed. The file is closed before returning, also when a write fails.
func Append(issues []string, path string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("Append: create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("Append: open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("Append: close %s: %w", path, cerr)
		}
	}()

	for _, issue := range issues {
		if _, err := f.WriteString(issue + "\n"); err != nil {
			return fmt.Errorf("Append: write %s: %w", path, err)
		}
	}
	return nil
}

// Logger appends issues to a fixed destination.
type Logger struct {
	Path string
}

// New returns a Logger for path, or DefaultPath when path is empty.
func New(path string) *Logger {
	if path == "" {
		path = DefaultPath
	}
	return &Logger{Path: path}
}

// Log appends issues to l.Path.
func (l *Logger) Log(issues []string) error {
	return Append(issues, l.Path)
}
