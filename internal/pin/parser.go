package pin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"martianoff/simc/internal/cmr"
)

// ParseError locates a malformed line in a pin file.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", DefaultName, e.Line, e.Message)
}

// Parse reads pin file content. Blank lines and lines starting with # are
// skipped.
func Parse(content string) (*File, error) {
	f := NewFile()
	seen := make(map[string]bool)
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Message: err.Error()}
		}
		if seen[e.Path] {
			return nil, &ParseError{Line: i + 1, Message: fmt.Sprintf("duplicate pin for %s", e.Path)}
		}
		seen[e.Path] = true
		f.Entries = append(f.Entries, e)
	}
	return f, nil
}

// ParseFile reads a pin file from disk. A missing file is an empty one.
func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pin file: %w", err)
	}
	return Parse(string(content))
}

// parseLine reads "path cmr". The path is everything before the last field,
// so it may contain spaces.
func parseLine(line string) (Entry, error) {
	idx := strings.LastIndexAny(line, " \t")
	if idx < 0 {
		return Entry{}, fmt.Errorf("invalid format: expected 'path cmr'")
	}
	path := strings.TrimSpace(line[:idx])
	c, err := cmr.Parse(line[idx+1:])
	if err != nil {
		return Entry{}, err
	}
	return Entry{Path: path, CMR: c}, nil
}
