// Package registry provides the table of jets: named primitives with fixed
// signatures that programs call as jet::NAME(args).
//
// The default registry is built once at init and is read-only afterwards.
// Additional registries can be created for tests or experiments.
package registry

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/sha3"

	"martianoff/simc/internal/types"
)

// JetInfo describes a registered jet.
type JetInfo struct {
	Name   string       // Name used after jet::, e.g. "add_32"
	Params []types.Type // Argument types in call order
	Target types.Type   // Result type
}

// Source is the input type of the jet: its parameters as a right-nested
// product, or () for no parameters.
func (j *JetInfo) Source() types.Type {
	return types.Tuple(j.Params...)
}

func (j *JetInfo) String() string {
	return fmt.Sprintf("%s: %s -> %s", j.Name, types.Format(j.Source()), types.Format(j.Target))
}

// JetRegistry manages known jets and provides lookup capabilities.
//
// Thread-safe: all methods can be called concurrently.
type JetRegistry struct {
	mu          sync.RWMutex
	jets        map[string]*JetInfo
	fingerprint *[32]byte
}

// NewRegistry creates an empty jet registry.
func NewRegistry() *JetRegistry {
	return &JetRegistry{jets: make(map[string]*JetInfo)}
}

// Register adds a jet. It returns an error if the name is taken.
func (r *JetRegistry) Register(info JetInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jets[info.Name]; ok {
		return fmt.Errorf("jet %s already registered", info.Name)
	}
	infoCopy := info // Store a copy
	r.jets[info.Name] = &infoCopy
	r.fingerprint = nil
	return nil
}

// Lookup returns the jet with the given name.
func (r *JetRegistry) Lookup(name string) (*JetInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.jets[name]
	return info, ok
}

// Names returns all registered jet names in sorted order.
func (r *JetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jets))
	for name := range r.jets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint is a SHA3-256 digest of every registered jet and its
// signature. Registries with the same jets have the same fingerprint.
func (r *JetRegistry) Fingerprint() [32]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fingerprint != nil {
		return *r.fingerprint
	}

	names := make([]string, 0, len(r.jets))
	for name := range r.jets {
		names = append(names, name)
	}
	sort.Strings(names)
	h := sha3.New256()
	for _, name := range names {
		sig := r.jets[name].String()
		h.Write(binary.AppendUvarint(nil, uint64(len(sig))))
		h.Write([]byte(sig))
	}
	var fp [32]byte
	h.Sum(fp[:0])
	r.fingerprint = &fp
	return fp
}

var (
	defaultOnce     sync.Once
	defaultRegistry *JetRegistry
)

// Default returns the process-wide jet registry.
func Default() *JetRegistry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerBuiltins(defaultRegistry)
	})
	return defaultRegistry
}
