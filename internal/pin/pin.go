// Package pin reads and writes pin files. A pin file records the CMR each
// contract is expected to compile to, one "path cmr" pair per line.
package pin

import (
	"fmt"

	"martianoff/simc/internal/cmr"
)

// DefaultName is the conventional name of a pin file.
const DefaultName = "simc.sum"

// File is a parsed pin file.
type File struct {
	Entries []Entry
}

// Entry pins one contract path to its CMR.
type Entry struct {
	Path string
	CMR  cmr.CMR
}

func NewFile() *File {
	return &File{}
}

// Set records c for path, replacing an existing pin.
func (f *File) Set(path string, c cmr.CMR) {
	for i := range f.Entries {
		if f.Entries[i].Path == path {
			f.Entries[i].CMR = c
			return
		}
	}
	f.Entries = append(f.Entries, Entry{Path: path, CMR: c})
}

// Get returns the CMR pinned for path.
func (f *File) Get(path string) (cmr.CMR, bool) {
	for _, e := range f.Entries {
		if e.Path == path {
			return e.CMR, true
		}
	}
	return cmr.CMR{}, false
}

// Verify checks got against the pin for path.
func (f *File) Verify(path string, got cmr.CMR) error {
	want, ok := f.Get(path)
	if !ok {
		return &NotPinnedError{Path: path}
	}
	if want != got {
		return &MismatchError{Path: path, Want: want, Got: got}
	}
	return nil
}

// NotPinnedError reports a path with no entry in the pin file.
type NotPinnedError struct {
	Path string
}

func (e *NotPinnedError) Error() string {
	return fmt.Sprintf("%s: not pinned", e.Path)
}

// MismatchError reports a contract whose CMR changed.
type MismatchError struct {
	Path string
	Want cmr.CMR
	Got  cmr.CMR
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: cmr %s does not match pinned %s", e.Path, e.Got, e.Want)
}
