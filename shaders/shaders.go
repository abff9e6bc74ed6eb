// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shaders holds the WGSL programs used by the GPU overdraw backend
// and validates them with naga.
//
// Two programs are built in:
//
//   - Replace: vertex + fragment stages substituted for every material
//     during the capture pass. The fragment stage outputs the fragment
//     weight into an additively blended R32Float target.
//   - Reduce: compute stage summing one 32x32 tile of the capture buffer
//     per work-group into a 128x128 uint32 result array.
//
// Hosts may replace either program (see internal/gpu WithShaderSources) as
// long as the binding layout stays the same.
package shaders

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
)

//go:embed replace.wgsl
var Replace string

//go:embed reduce.wgsl
var Reduce string

// Entry points of the built-in programs.
const (
	ReplaceVertexEntry   = "vs_main"
	ReplaceFragmentEntry = "fs_main"
	ReduceEntry          = "main"
)

var (
	// ErrEmpty is returned for a missing or blank source.
	ErrEmpty = errors.New("shaders: empty source")

	// ErrUnsupported marks sources naga cannot translate yet although they
	// may be valid WGSL (runtime-sized arrays, some atomics). The device
	// compiler is still able to consume them as WGSL.
	ErrUnsupported = errors.New("shaders: not supported by naga")
)

// Source is a named WGSL program.
type Source struct {
	Name string
	WGSL string
}

// Builtin returns the built-in programs in a fixed order.
func Builtin() []Source {
	return []Source{
		{Name: "replace", WGSL: Replace},
		{Name: "reduce", WGSL: Reduce},
	}
}

// Validate compiles src with naga and discards the output.
// Errors wrap ErrEmpty, ErrUnsupported, or the naga error itself.
func Validate(src string) error {
	_, err := CompileSPIRV(src)
	return err
}

// CompileSPIRV translates WGSL to SPIR-V words.
func CompileSPIRV(src string) ([]uint32, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmpty
	}
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		if isLimitation(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return nil, fmt.Errorf("shaders: compile: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("shaders: SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

func isLimitation(err error) bool {
	s := err.Error()
	return strings.Contains(s, "not yet implemented") ||
		strings.Contains(s, "not supported") ||
		strings.Contains(s, "atomic")
}

// Result is the outcome of checking one source.
type Result struct {
	Name  string
	Words int // SPIR-V words produced, 0 on error
	Err   error
}

// OK reports whether the source compiled, or failed only on a naga
// limitation.
func (r Result) OK() bool {
	return r.Err == nil || errors.Is(r.Err, ErrUnsupported)
}

// Check validates every source and reports each result in order.
func Check(sources []Source) []Result {
	out := make([]Result, 0, len(sources))
	for _, s := range sources {
		words, err := CompileSPIRV(s.WGSL)
		out = append(out, Result{Name: s.Name, Words: len(words), Err: err})
	}
	return out
}
