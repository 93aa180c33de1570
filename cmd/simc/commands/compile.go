package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/compiler"
	"martianoff/simc/internal/pin"
	"martianoff/simc/internal/source"
	"martianoff/simc/simerr"
)

type compileOptions struct {
	witness string
	emit    string
	rev     string
	pin     string
	verify  string
}

var emitFormats = []string{"cmr", "json", "program", "tree"}

func newCompileCmd(a *app) *cobra.Command {
	opts := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile [file...]",
		Short: "Compile contracts and print their CMR",
		Long: `Compile one or more contracts. Files compile concurrently; use - to read
standard input.

The witness may be a JSON or YAML file, or inline JSON starting with "{".

Examples:
  simc compile main.simc
  simc compile main.simc -w witness.yaml --emit json
  simc compile main.simc --rev v1.0.0
  simc compile *.simc --pin simc.sum
  simc compile *.simc --verify simc.sum
  echo 'fn main() {}' | simc compile -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompile(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.witness, "witness", "w", "", "Witness file (.json, .yaml) or inline JSON")
	cmd.Flags().StringVarP(&opts.emit, "emit", "e", "cmr", "Output: "+strings.Join(emitFormats, ", "))
	cmd.Flags().StringVar(&opts.rev, "rev", "", "Read sources at this git revision")
	cmd.Flags().StringVar(&opts.pin, "pin", "", "Record the CMR of each compiled file in this pin file")
	cmd.Flags().StringVar(&opts.verify, "verify", "", "Fail unless each CMR matches this pin file")
	cmd.MarkFlagsMutuallyExclusive("pin", "verify")
	return cmd
}

func (a *app) runCompile(ctx context.Context, in io.Reader, out, errOut io.Writer, files []string, opts *compileOptions) error {
	if !validEmit(opts.emit) {
		return fmt.Errorf("unknown --emit %q, want one of %s", opts.emit, strings.Join(emitFormats, ", "))
	}
	witnessJSON, err := loadWitness(opts.witness)
	if err != nil {
		return err
	}
	if opts.witness != "" && strings.TrimSpace(witnessJSON) == "" {
		return simerr.NewInputError("Witness data is empty")
	}

	reqs := make([]compiler.Request, len(files))
	for i, file := range files {
		src, err := readSource(in, file, opts.rev)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		reqs[i] = compiler.Request{Code: src, WitnessData: witnessJSON}
	}

	a.log.Debugf("compiling %d file(s)", len(files))
	outcomes, err := a.compiler.CompileAll(ctx, reqs)
	if err != nil {
		return err
	}

	if opts.emit == "json" {
		if err := emitJSON(out, files, reqs, outcomes); err != nil {
			return err
		}
	}

	failed := 0
	for i, o := range outcomes {
		if o.Err != nil {
			failed++
			if len(files) > 1 && opts.emit != "json" {
				fmt.Fprintf(errOut, "%s: %v\n", files[i], o.Err)
			}
			continue
		}
		if opts.emit == "json" {
			continue
		}
		if len(files) > 1 {
			sep := " "
			if opts.emit == "tree" {
				sep = "\n"
			}
			fmt.Fprintf(out, "%s:%s", files[i], sep)
		}
		emit(out, opts.emit, o.Artifact)
	}

	if failed == 0 {
		switch {
		case opts.pin != "":
			return a.writePins(opts.pin, files, outcomes)
		case opts.verify != "":
			return verifyPins(opts.verify, files, outcomes)
		}
	}

	switch {
	case failed == 0:
		return nil
	case len(files) == 1:
		return outcomes[0].Err
	default:
		return fmt.Errorf("%d of %d file(s) failed", failed, len(files))
	}
}

// writePins records the CMRs in path, keeping pins for other files.
func (a *app) writePins(path string, files []string, outcomes []compiler.Outcome) error {
	f, err := pin.ParseFile(path)
	if err != nil {
		return err
	}
	for i, o := range outcomes {
		if files[i] == "-" {
			continue
		}
		f.Set(filepath.ToSlash(files[i]), o.Artifact.CMR)
	}
	if err := pin.WriteFile(f, path); err != nil {
		return fmt.Errorf("failed to write pin file: %w", err)
	}
	a.log.Infof("pinned %d file(s) in %s", len(f.Entries), path)
	return nil
}

func verifyPins(path string, files []string, outcomes []compiler.Outcome) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to read pin file: %w", err)
	}
	f, err := pin.ParseFile(path)
	if err != nil {
		return err
	}
	var errs []error
	for i, o := range outcomes {
		if files[i] == "-" {
			continue
		}
		if err := f.Verify(filepath.ToSlash(files[i]), o.Artifact.CMR); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validEmit(format string) bool {
	for _, f := range emitFormats {
		if f == format {
			return true
		}
	}
	return false
}

func emit(out io.Writer, format string, art *compiler.Artifact) {
	switch format {
	case "cmr":
		fmt.Fprintln(out, art.CMR)
	case "program":
		fmt.Fprintln(out, art.ProgramBase64())
	case "tree":
		root := art.Tree
		if art.Bound != nil {
			root = art.Bound.Root
		}
		combinator.Fprint(out, root)
	}
}

// emitJSON prints one Result for a single file, or an object keyed by file.
func emitJSON(out io.Writer, files []string, reqs []compiler.Request, outcomes []compiler.Outcome) error {
	var v any
	if len(files) == 1 {
		v = reqs[0].Result(outcomes[0].Artifact, outcomes[0].Err)
	} else {
		m := make(map[string]compiler.Result, len(files))
		for i, o := range outcomes {
			m[files[i]] = reqs[i].Result(o.Artifact, o.Err)
		}
		v = m
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readSource(in io.Reader, file, rev string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return source.Read(file, rev)
}

// loadWitness returns witness JSON from inline text or a file. YAML files are
// converted to JSON.
func loadWitness(spec string) (string, error) {
	if spec == "" || strings.HasPrefix(strings.TrimSpace(spec), "{") {
		return spec, nil
	}
	data, err := os.ReadFile(spec)
	if err != nil {
		return "", fmt.Errorf("failed to read witness file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(spec)) {
	case ".yaml", ".yml":
		return yamlToJSON(data)
	}
	return string(data), nil
}

func yamlToJSON(data []byte) (string, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("invalid YAML witness: %w", err)
	}
	if v == nil {
		return "", nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("invalid YAML witness: %w", err)
	}
	return string(out), nil
}
