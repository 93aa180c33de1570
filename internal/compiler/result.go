package compiler

import (
	"encoding/json"
	"strings"
)

// Result is the host-facing outcome of a compile request. Exactly one of CMR
// and Error is set.
type Result struct {
	CMR         *string
	Error       *string
	WitnessData map[string]any
	// Witnessed marks the result of a compile with witness data. Its JSON
	// form always has witness_data, null when nothing was bound.
	Witnessed bool
}

type plainResultJSON struct {
	CMR   *string `json:"cmr"`
	Error *string `json:"error"`
}

type witnessResultJSON struct {
	CMR         *string        `json:"cmr"`
	Error       *string        `json:"error"`
	WitnessData map[string]any `json:"witness_data"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Witnessed {
		return json.Marshal(plainResultJSON{CMR: r.CMR, Error: r.Error})
	}
	return json.Marshal(witnessResultJSON{CMR: r.CMR, Error: r.Error, WitnessData: r.WitnessData})
}

// Request is a host compile request. An empty WitnessData selects a plain
// compile.
type Request struct {
	Code        string `json:"code"`
	WitnessData string `json:"witness_data,omitempty"`
}

// Witnessed reports whether req carries witness data.
func (req Request) Witnessed() bool {
	return strings.TrimSpace(req.WitnessData) != ""
}

// Result converts the outcome of req into a Result.
func (req Request) Result(art *Artifact, err error) Result {
	if req.Witnessed() {
		return NewWitnessResult(art, err)
	}
	return NewResult(art, err)
}

// NewResult converts a plain compile outcome into a Result.
func NewResult(art *Artifact, err error) Result {
	if err != nil {
		msg := err.Error()
		return Result{Error: &msg}
	}
	sum := art.CMR.String()
	return Result{CMR: &sum, WitnessData: art.WitnessData}
}

// NewWitnessResult converts a compile-with-witness outcome into a Result.
func NewWitnessResult(art *Artifact, err error) Result {
	res := NewResult(art, err)
	res.Witnessed = true
	return res
}

// CompileResult compiles src and reports the outcome as a Result.
func (c *Compiler) CompileResult(src string) Result {
	return NewResult(c.Compile(src))
}

// CompileWithWitnessResult compiles and binds, reporting the outcome as a
// Result.
func (c *Compiler) CompileWithWitnessResult(src, witnessJSON string) Result {
	return NewWitnessResult(c.CompileWithWitness(src, witnessJSON))
}

// Run dispatches req to CompileResult or CompileWithWitnessResult.
func (c *Compiler) Run(req Request) Result {
	return req.Result(c.Do(req))
}

// Do dispatches req to Compile or CompileWithWitness.
func (c *Compiler) Do(req Request) (*Artifact, error) {
	if !req.Witnessed() {
		return c.Compile(req.Code)
	}
	return c.CompileWithWitness(req.Code, req.WitnessData)
}
