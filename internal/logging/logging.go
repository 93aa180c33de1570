// Package logging owns the btclog backend and the subsystem loggers used by
// the simc binary.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/btcsuite/btclog"

	"martianoff/simc/internal/compiler"
)

// Subsystem tags.
const (
	Compiler = "CMPL"
	CLI      = "CLI"
	Watcher  = "WTCH"
)

var (
	mu         sync.Mutex
	backend    = btclog.NewBackend(os.Stderr)
	subsystems = map[string]btclog.Logger{}
	level      = btclog.LevelInfo
)

func init() {
	compiler.UseLogger(Logger(Compiler))
}

// SetOutput replaces the backend writer. Loggers handed out earlier keep
// writing to the old backend, so call this before Logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	backend = btclog.NewBackend(w)
	for tag := range subsystems {
		l := backend.Logger(tag)
		l.SetLevel(subsystems[tag].Level())
		subsystems[tag] = l
	}
	if l, ok := subsystems[Compiler]; ok {
		compiler.UseLogger(l)
	}
}

// Logger returns the logger for tag, creating it at the current level.
func Logger(tag string) btclog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := subsystems[tag]; ok {
		return l
	}
	l := backend.Logger(tag)
	l.SetLevel(level)
	subsystems[tag] = l
	return l
}

// SetLevels sets every subsystem, including ones created later, to the
// named level.
func SetLevels(name string) error {
	lvl, ok := btclog.LevelFromString(name)
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	for _, l := range subsystems {
		l.SetLevel(lvl)
	}
	return nil
}

// Subsystems lists the tags of the loggers created so far.
func Subsystems() []string {
	mu.Lock()
	defer mu.Unlock()
	tags := make([]string, 0, len(subsystems))
	for tag := range subsystems {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
