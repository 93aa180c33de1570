package pin

import (
	"os"
	"sort"
	"strings"
)

// Format renders f sorted by path.
func Format(f *File) string {
	entries := make([]Entry, len(f.Entries))
	copy(entries, f.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Path)
		sb.WriteString(" ")
		sb.WriteString(e.CMR.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func WriteFile(f *File, path string) error {
	return os.WriteFile(path, []byte(Format(f)), 0644)
}
