package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/compiler"
	"martianoff/simc/internal/parser"
	"martianoff/simc/simerr"
)

const (
	promptMain = "simc> "
	promptCont = "  ... "
	replHelp   = `Enter a contract; it compiles once it parses or on an empty line.
  :witness JSON   bind these witness values (no argument clears them)
  :tree           print the tree of the last program
  :clear          discard pending input
  :quit           exit`
)

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Compile contracts interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRepl(cmd.OutOrStdout())
		},
	}
}

func (a *app) runRepl(out io.Writer) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(a.cfg.HistoryFile); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if err := a.cfg.EnsureDirs(); err != nil {
			a.log.Warnf("cannot save history: %v", err)
			return
		}
		if f, err := os.Create(a.cfg.HistoryFile); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintln(out, "simc", Version, "- type :help for commands")
	s := &session{compiler: a.compiler, out: out}
	for {
		prompt := promptMain
		if s.pending() {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			s.clear()
			continue
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if s.feed(line) {
			return nil
		}
	}
}

// session accumulates input lines and compiles them once they form a
// complete module.
type session struct {
	compiler *compiler.Compiler
	out      io.Writer
	buf      []string
	witness  string
	last     *compiler.Artifact
}

func (s *session) pending() bool {
	return len(s.buf) > 0
}

func (s *session) clear() {
	s.buf = s.buf[:0]
}

// feed handles one line of input and reports whether the session is over.
func (s *session) feed(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, ":") {
		return s.command(trimmed)
	}

	if trimmed == "" {
		if s.pending() {
			s.compile()
		}
		return false
	}
	s.buf = append(s.buf, line)
	if !incomplete(strings.Join(s.buf, "\n")) {
		s.compile()
	}
	return false
}

func (s *session) command(cmd string) bool {
	name, arg, _ := strings.Cut(cmd, " ")
	switch name {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprintln(s.out, replHelp)
	case ":clear":
		s.clear()
	case ":witness":
		s.witness = strings.TrimSpace(arg)
		if s.witness == "" {
			fmt.Fprintln(s.out, "witness cleared")
		} else {
			fmt.Fprintln(s.out, "witness set")
		}
	case ":tree":
		if s.last == nil {
			fmt.Fprintln(s.out, "nothing compiled yet")
			break
		}
		root := s.last.Tree
		if s.last.Bound != nil {
			root = s.last.Bound.Root
		}
		combinator.Fprint(s.out, root)
	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for commands.")
	}
	return false
}

func (s *session) compile() {
	src := strings.Join(s.buf, "\n")
	s.clear()
	art, err := s.compiler.Do(compiler.Request{Code: src, WitnessData: s.witness})
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	s.last = art
	fmt.Fprintln(s.out, "cmr", art.CMR)
	for _, name := range sortedKeys(art.WitnessData) {
		fmt.Fprintf(s.out, "  %s = %s\n", name, jsonText(art.WitnessData[name]))
	}
}

// incomplete reports whether src fails to parse only because input ended
// early.
func incomplete(src string) bool {
	_, err := parser.Parse(src)
	var perr *simerr.ParseError
	return errors.As(err, &perr) && perr.Found == "end of input"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
