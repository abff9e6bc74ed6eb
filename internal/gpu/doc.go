// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

// Package gpu implements the overdraw device side on wgpu/hal.
//
// The capture pass renders into an R32Float color texture with a
// Depth24PlusStencil8 companion, using a replacement pipeline that blends
// One + One so every fragment passing the depth test adds the fragment
// weight. The reduction copies the color texture into a storage buffer and
// dispatches one 32x8 work-group per 32x32 tile, each writing its
// fragment count into a 128x128 uint32 result buffer. Result readback goes
// through a MapRead staging buffer behind a fence wait, which stalls the
// pipeline once per measured camera per frame.
//
// The backend opens its own Vulkan device unless it is handed a shared
// device with SetDeviceProvider or WithDevice. Build with -tags nogpu to
// drop the package and its hal dependency.
package gpu
