package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martianoff/simc/internal/cmr"
	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/compiler"
	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/simerr"
)

const (
	emptyProgram    = "mod param {}\nfn main() {}"
	emptyProgramCMR = "345c2d7e7da821dcf649ed8611b1e6d21cb94b7fd62ed8631196217cebcd9b3f"
	valueProgram    = "fn main() { witness::VALUE }"
	valueProgramCMR = "715cdc36705ead8037d6de6adacd674a27eeac18a21cfb5c2cd432e461996431"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SIMC_HOME", t.TempDir())
	t.Setenv("SIMC_LOG_LEVEL", "off")

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCompileCommand(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.simc", emptyProgram)
	value := writeFile(t, dir, "value.simc", valueProgram)
	jsonWitness := writeFile(t, dir, "witness.json", `{"VALUE": 42}`)
	yamlWitness := writeFile(t, dir, "witness.yaml", "VALUE: 42\n")

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{name: "CMR", args: []string{"compile", empty}, want: emptyProgramCMR + "\n"},
		{name: "Tree", args: []string{"compile", empty, "--emit", "tree"}, want: "%0 = unit : () -> ()\n"},
		{name: "Stdin", stdin: valueProgram, args: []string{"compile", "-"}, want: valueProgramCMR + "\n"},
		{name: "JSON witness file", args: []string{"compile", value, "-w", jsonWitness}, want: valueProgramCMR + "\n"},
		{name: "Inline witness", args: []string{"compile", value, "-w", `{"VALUE": 1}`}, want: valueProgramCMR + "\n"},
		{
			name: "Bound tree",
			args: []string{"compile", value, "-w", yamlWitness, "--emit", "tree"},
			want: "%0 = const 42 : () -> u64\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCompileEmitJSON(t *testing.T) {
	dir := t.TempDir()
	value := writeFile(t, dir, "value.simc", valueProgram)
	witness := writeFile(t, dir, "witness.yml", "VALUE: 42\n")

	out, _, err := execute(t, "", "compile", value, "-w", witness, "--emit", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmr": "`+valueProgramCMR+`", "error": null, "witness_data": {"VALUE": 42}}`, out)

	out, _, err = execute(t, "", "compile", value, "-w", `{"OTHER": 1}`, "--emit", "json")
	require.Error(t, err)
	assert.Contains(t, out, `"cmr": null`)
	assert.Contains(t, out, "missing witness VALUE")
}

func TestCompileEmitProgram(t *testing.T) {
	dir := t.TempDir()
	src := "fn main() { let x: u8 = 3; jet::is_zero_8(x) }"
	path := writeFile(t, dir, "main.simc", src)

	out, _, err := execute(t, "", "compile", path, "--emit", "program")
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	root, err := combinator.Decode(data, registry.Default())
	require.NoError(t, err)

	art, err := compiler.New().Compile(src)
	require.NoError(t, err)
	assert.Equal(t, art.CMR, cmr.Compute(root))
}

func TestCompileSeveralFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.simc", emptyProgram)
	b := writeFile(t, dir, "b.simc", "fn main() { jet::verify((1: u8)) }")
	c := writeFile(t, dir, "c.simc", valueProgram)

	out, errOut, err := execute(t, "", "compile", a, b, c)
	assert.EqualError(t, err, "1 of 3 file(s) failed")
	assert.Equal(t, a+": "+emptyProgramCMR+"\n"+c+": "+valueProgramCMR+"\n", out)
	assert.Contains(t, errOut, b+": [TypeError]")
}

func TestCompileErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.simc", emptyProgram)
	bad := writeFile(t, dir, "bad.simc", "fn helper() {}")
	blank := writeFile(t, dir, "blank.json", "  \n")

	_, _, err := execute(t, "", "compile", bad)
	assert.Equal(t, simerr.TypeParse, simerr.TypeOf(err))

	_, _, err = execute(t, "", "compile", good, "--emit", "hex")
	assert.ErrorContains(t, err, `unknown --emit "hex"`)

	_, _, err = execute(t, "", "compile", good, "-w", blank)
	assert.EqualError(t, err, "Witness data is empty")

	_, _, err = execute(t, "", "compile", filepath.Join(dir, "missing.simc"))
	assert.ErrorContains(t, err, "failed to read")

	_, _, err = execute(t, "", "compile")
	assert.Error(t, err)
}

func TestCompileAtRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commit := func(content string) {
		writeFile(t, dir, "main.simc", content)
		_, err := wt.Add("main.simc")
		require.NoError(t, err)
		_, err = wt.Commit("update", &git.CommitOptions{
			Author: &object.Signature{Name: "simc", Email: "simc@example.com", When: time.Now()},
		})
		require.NoError(t, err)
	}
	commit(emptyProgram)
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v1", head.Hash(), nil)
	require.NoError(t, err)
	commit(valueProgram)

	path := filepath.Join(dir, "main.simc")
	out, _, err := execute(t, "", "compile", path, "--rev", "v1")
	require.NoError(t, err)
	assert.Equal(t, emptyProgramCMR+"\n", out)

	out, _, err = execute(t, "", "compile", path)
	require.NoError(t, err)
	assert.Equal(t, valueProgramCMR+"\n", out)
}

func TestCompilePins(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.simc", emptyProgram)
	b := writeFile(t, dir, "b.simc", valueProgram)
	pins := filepath.Join(dir, "simc.sum")

	_, _, err := execute(t, "", "compile", a, "--pin", pins)
	require.NoError(t, err)
	_, _, err = execute(t, "", "compile", b, "--pin", pins)
	require.NoError(t, err)
	data, err := os.ReadFile(pins)
	require.NoError(t, err)
	assert.Equal(t,
		filepath.ToSlash(a)+" "+emptyProgramCMR+"\n"+filepath.ToSlash(b)+" "+valueProgramCMR+"\n",
		string(data))

	_, _, err = execute(t, "", "compile", a, b, "--verify", pins)
	require.NoError(t, err)

	writeFile(t, dir, "a.simc", valueProgram)
	_, _, err = execute(t, "", "compile", a, b, "--verify", pins)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match pinned "+emptyProgramCMR)

	c := writeFile(t, dir, "c.simc", emptyProgram)
	_, _, err = execute(t, "", "compile", c, "--verify", pins)
	assert.ErrorContains(t, err, "not pinned")

	_, _, err = execute(t, "", "compile", c, "--verify", filepath.Join(dir, "none.sum"))
	assert.ErrorContains(t, err, "failed to read pin file")

	_, _, err = execute(t, "", "compile", c, "--pin", pins, "--verify", pins)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "simc version dev\n", out)
}

func TestLoadWitness(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		spec    func() string
		want    string
		wantErr bool
	}{
		{name: "None", spec: func() string { return "" }, want: ""},
		{name: "Inline", spec: func() string { return ` {"A": 1}` }, want: ` {"A": 1}`},
		{name: "JSON file", spec: func() string { return writeFile(t, dir, "w.json", `{"A": [1, true]}`) }, want: `{"A": [1, true]}`},
		{
			name: "YAML file",
			spec: func() string { return writeFile(t, dir, "w.yaml", "A:\n  - 1\n  - true\nB:\n  Right: \"0xff\"\n") },
			want: `{"A":[1,true],"B":{"Right":"0xff"}}`,
		},
		{name: "Duplicate YAML keys", spec: func() string { return writeFile(t, dir, "dup.yaml", "A: 1\nA: 2\n") }, wantErr: true},
		{name: "Missing file", spec: func() string { return filepath.Join(dir, "nope.json") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadWitness(tt.spec())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession(t *testing.T) {
	var out bytes.Buffer
	s := &session{compiler: compiler.New(), out: &out}

	assert.False(t, s.feed("fn main() {"))
	assert.True(t, s.pending())
	assert.Empty(t, out.String())
	assert.False(t, s.feed("}"))
	assert.False(t, s.pending())
	assert.Equal(t, "cmr "+emptyProgramCMR+"\n", out.String())

	out.Reset()
	s.feed(`:witness {"VALUE": 7}`)
	s.feed(valueProgram)
	assert.Equal(t, "witness set\ncmr "+valueProgramCMR+"\n  VALUE = 7\n", out.String())

	out.Reset()
	s.feed(":tree")
	assert.Equal(t, "%0 = const 7 : () -> u64\n", out.String())

	out.Reset()
	s.feed("fn helper() {}")
	assert.True(t, s.pending())
	s.feed("")
	assert.Contains(t, out.String(), "missing main function")

	out.Reset()
	s.feed(":witness")
	s.feed("fn main() { $ }")
	assert.True(t, strings.HasPrefix(out.String(), "witness cleared\n"), out.String())
	assert.Contains(t, out.String(), "[LexError]")

	out.Reset()
	s.feed("fn main() {")
	s.feed(":clear")
	assert.False(t, s.pending())
	assert.Empty(t, out.String())
	s.feed(":bogus")
	assert.Contains(t, out.String(), "unknown command")

	assert.True(t, s.feed(":quit"))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.simc", emptyProgram)
	writeFile(t, dir, "other.simc", "not a contract")

	out := &syncBuffer{}
	w := &watcher{compiler: compiler.New(), log: btclog.Disabled, path: path, out: out}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- w.run(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch stopped early: %v", err)
	}
	assert.Equal(t, path+": "+emptyProgramCMR+"\n", out.String())

	writeFile(t, dir, "other.simc", "still not a contract")
	require.NoError(t, os.WriteFile(path, []byte(valueProgram), 0644))
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), path+": "+valueProgramCMR)
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotContains(t, out.String(), "other.simc")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
