// Package backend selects the device implementation overdraw measures on.
//
// Backends register a factory from an init function and are picked at
// runtime by name or by priority. The software backend registers itself
// when this package is imported; the wgpu backend registers when
// github.com/gogpu/overdraw/gpu is imported:
//
//	import (
//	    "github.com/gogpu/overdraw/backend"
//	    _ "github.com/gogpu/overdraw/gpu"
//	)
//
//	b, err := backend.InitDefault() // wgpu if a GPU is usable, else software
//
// Get returns a new, uninitialized instance on every call. Call Init
// before use and Close when done.
package backend
