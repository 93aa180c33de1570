package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"martianoff/simc/internal/compiler"
	"martianoff/simc/internal/logging"
	"martianoff/simc/internal/source"
)

func newWatchCmd(a *app) *cobra.Command {
	var witnessSpec string
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Recompile a contract whenever it changes",
		Long: `Compile FILE, then recompile and print the result every time it is
written. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := &watcher{
				compiler: a.compiler,
				log:      logging.Logger(logging.Watcher),
				path:     args[0],
				witness:  witnessSpec,
				out:      cmd.OutOrStdout(),
			}
			return w.run(cmd.Context(), nil)
		},
	}
	cmd.Flags().StringVarP(&witnessSpec, "witness", "w", "", "Witness file (.json, .yaml) or inline JSON")
	return cmd
}

type watcher struct {
	compiler *compiler.Compiler
	log      btclog.Logger
	path     string
	witness  string
	out      io.Writer
}

// run compiles once and then on every write to the file until ctx is done.
// ready, if not nil, is closed once the file is being watched.
func (w *watcher) run(ctx context.Context, ready chan<- struct{}) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// editors often replace the file, so watch its directory
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	target := filepath.Clean(w.path)
	w.report()
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			w.log.Debugf("%s changed (%s)", w.path, ev.Op)
			w.report()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch error: %v", err)
		}
	}
}

func (w *watcher) report() {
	src, err := source.Read(w.path, "")
	if err != nil {
		fmt.Fprintf(w.out, "%s: error: %v\n", w.path, err)
		return
	}
	witnessJSON, err := loadWitness(w.witness)
	if err != nil {
		fmt.Fprintf(w.out, "%s: error: %v\n", w.path, err)
		return
	}
	art, err := w.compiler.Do(compiler.Request{Code: src, WitnessData: witnessJSON})
	if err != nil {
		fmt.Fprintf(w.out, "%s: error: %v\n", w.path, err)
		return
	}
	fmt.Fprintf(w.out, "%s: %s\n", w.path, art.CMR)
}
