//go:build !nogpu

package main

import _ "github.com/gogpu/overdraw/gpu" // register the wgpu backend
