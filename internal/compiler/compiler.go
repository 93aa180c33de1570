// Package compiler runs the contract pipeline: parse, check, lower, hash and,
// when witness data is supplied, bind.
package compiler

import (
	"encoding/base64"
	"strings"

	"github.com/btcsuite/btclog"

	"martianoff/simc/internal/ast"
	"martianoff/simc/internal/cmr"
	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/compiler/infer"
	"martianoff/simc/internal/compiler/lower"
	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/parser"
	"martianoff/simc/internal/types"
	"martianoff/simc/internal/witness"
	"martianoff/simc/simerr"
)

// SourceParser turns source text into a syntax tree.
type SourceParser interface {
	Parse(src string) (*ast.Module, error)
}

// Artifact is the outcome of a successful compilation. Artifacts may be
// shared through a Cache and must not be modified.
type Artifact struct {
	CMR       cmr.CMR
	Tree      *combinator.Node
	Witnesses map[string]types.Type
	Program   []byte

	// Set by CompileWithWitness.
	Bound        *witness.Bound
	WitnessData  map[string]any
	BoundProgram []byte
}

// ProgramBase64 returns the encoded program, bound if witness data was given.
func (a *Artifact) ProgramBase64() string {
	if a.BoundProgram != nil {
		return base64.StdEncoding.EncodeToString(a.BoundProgram)
	}
	return base64.StdEncoding.EncodeToString(a.Program)
}

// Compiler orchestrates the pipeline stages. It holds no per-call state and
// is safe for concurrent use when its Cache is.
type Compiler struct {
	parser  SourceParser
	jets    *registry.JetRegistry
	cache   Cache
	workers int
	log     btclog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCache stores successful artifacts in cache.
func WithCache(cache Cache) Option {
	return func(c *Compiler) { c.cache = cache }
}

// WithJets resolves jet calls against jets instead of the default registry.
func WithJets(jets *registry.JetRegistry) Option {
	return func(c *Compiler) { c.jets = jets }
}

// WithWorkers bounds the concurrency of CompileAll.
func WithWorkers(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger overrides the package logger for one Compiler.
func WithLogger(l btclog.Logger) Option {
	return func(c *Compiler) { c.log = l }
}

// WithParser replaces the source parser.
func WithParser(p SourceParser) Option {
	return func(c *Compiler) { c.parser = p }
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		parser:  parser.NewParser(),
		jets:    registry.Default(),
		cache:   NopCache{},
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compiler) logger() btclog.Logger {
	if c.log != nil {
		return c.log
	}
	return log
}

// Compile compiles src and computes its CMR.
func (c *Compiler) Compile(src string) (*Artifact, error) {
	if strings.TrimSpace(src) == "" {
		return nil, simerr.NewInputError("Code is empty")
	}

	key := Key(c.jets, src, "")
	if art, ok := c.cache.Get(key); ok {
		c.logger().Debugf("cache hit for %s", key)
		return art, nil
	}

	art, err := c.compile(src)
	if err != nil {
		c.logger().Debugf("compile failed: %v", err)
		return nil, err
	}
	c.cache.Put(key, art)
	return art, nil
}

// CompileWithWitness compiles src and binds the witness values in
// witnessJSON. The CMR is that of the unbound program.
func (c *Compiler) CompileWithWitness(src, witnessJSON string) (*Artifact, error) {
	if strings.TrimSpace(src) == "" {
		return nil, simerr.NewInputError("Code is empty")
	}
	if strings.TrimSpace(witnessJSON) == "" {
		return nil, simerr.NewInputError("Witness data is empty")
	}
	raw, err := witness.ParseJSON([]byte(witnessJSON))
	if err != nil {
		return nil, simerr.NewInputErrorf("Invalid JSON: %v", err)
	}

	key := Key(c.jets, src, witnessJSON)
	if art, ok := c.cache.Get(key); ok {
		c.logger().Debugf("cache hit for %s", key)
		return art, nil
	}

	base, err := c.Compile(src)
	if err != nil {
		return nil, err
	}
	c.logger().Debugf("binding %d witness value(s)", len(raw))

	bound, err := witness.NewBinder(c.jets).BindJSON(base.Tree, raw)
	if err != nil {
		return nil, err
	}

	art := *base
	art.Bound = bound
	art.WitnessData = bound.Data()
	art.BoundProgram = combinator.Encode(bound.Root)
	c.cache.Put(key, &art)
	return &art, nil
}

func (c *Compiler) compile(src string) (*Artifact, error) {
	mod, err := c.parser.Parse(src)
	if err != nil {
		return nil, err
	}
	tm, err := infer.NewChecker(c.jets).Check(mod)
	if err != nil {
		return nil, err
	}
	root, err := lower.LowerWith(tm, c.jets)
	if err != nil {
		return nil, err
	}

	art := &Artifact{
		CMR:       cmr.Compute(root),
		Tree:      root,
		Witnesses: combinator.Witnesses(root),
		Program:   combinator.Encode(root),
	}
	c.logger().Debugf("compiled %d node(s), %d witness slot(s), cmr %s",
		combinator.Size(root), len(art.Witnesses), art.CMR)
	return art, nil
}
