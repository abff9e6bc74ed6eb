//go:build !nogpu

// Package gpu registers the wgpu overdraw backend.
//
// Import this package to make the "wgpu" backend available to
// backend.Init and backend.InitDefault. The backend measures on a Vulkan
// device it opens itself, or on the host's device after SetDeviceProvider.
//
// If GPU initialization fails (no Vulkan available, or the shaders are
// rejected), backend.InitDefault falls back to the software backend.
//
// Usage:
//
//	import _ "github.com/gogpu/overdraw/gpu" // enable GPU measurement
package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/backend"
	gpuimpl "github.com/gogpu/overdraw/internal/gpu"
)

var (
	providerMu sync.Mutex
	provider   gpucontext.DeviceProvider
)

func init() {
	backend.Register(backend.WGPU, newBackend)
}

func newBackend() overdraw.Backend {
	b := gpuimpl.New()
	providerMu.Lock()
	p := provider
	providerMu.Unlock()
	if p != nil {
		if err := b.SetDeviceProvider(p); err != nil {
			overdraw.Logger().Warn("overdraw: shared GPU device rejected, opening own device", "err", err)
		}
	}
	return b
}

// SetDeviceProvider makes every wgpu backend created afterwards measure on
// the host's device instead of opening its own. The provider must also
// implement HalDevice() any and HalQueue() any for direct HAL access.
// Pass nil to go back to private devices.
func SetDeviceProvider(p gpucontext.DeviceProvider) error {
	if p != nil {
		if _, ok := p.(interface {
			HalDevice() any
			HalQueue() any
		}); !ok {
			return fmt.Errorf("gpu: provider does not expose HAL types")
		}
	}
	providerMu.Lock()
	provider = p
	providerMu.Unlock()
	return nil
}
