// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/shaders"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Name is the registry name of this backend.
const Name = "wgpu"

// DefaultFenceTimeout bounds every submit-and-wait.
const DefaultFenceTimeout = 5 * time.Second

var (
	errNotInitialized = errors.New("gpu: backend not initialized")
	errReleased       = errors.New("gpu: buffer already released")
)

// Option configures a Backend.
type Option func(*Backend)

// WithDevice makes the backend use an existing device and queue. The
// backend never destroys a device it did not create.
func WithDevice(device hal.Device, queue hal.Queue) Option {
	return func(b *Backend) {
		b.device = device
		b.queue = queue
		b.externalDevice = true
	}
}

// WithShaderSources replaces the built-in WGSL programs. An empty string
// keeps the built-in program for that stage.
func WithShaderSources(replace, reduce string) Option {
	return func(b *Backend) {
		if replace != "" {
			b.replaceSrc = replace
		}
		if reduce != "" {
			b.reduceSrc = reduce
		}
	}
}

// WithFenceTimeout bounds each GPU wait. Context deadlines shorten it.
func WithFenceTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.fenceTimeout = d
		}
	}
}

// Backend implements overdraw.Backend on wgpu/hal.
type Backend struct {
	mu sync.Mutex

	instance       hal.Instance
	device         hal.Device
	queue          hal.Queue
	externalDevice bool // true when using shared device (don't destroy on Close)
	adapterName    string

	replaceSrc   string
	reduceSrc    string
	fenceTimeout time.Duration

	pipes *pipelines

	shader *Shader
	live   atomic.Int64
	ready  bool
}

var _ overdraw.Backend = (*Backend)(nil)

// New returns an uninitialized backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		replaceSrc:   shaders.Replace,
		reduceSrc:    shaders.Reduce,
		fenceTimeout: DefaultFenceTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.shader = &Shader{owner: b}
	return b
}

// Name implements overdraw.Backend.
func (b *Backend) Name() string { return Name }

// SetLogger sets the package logger. It is called by overdraw when the
// backend is bound to a registry.
func (b *Backend) SetLogger(l *slog.Logger) { setLogger(l) }

// Init validates the shader sources, acquires a device if none was given
// and builds both pipelines. Shader problems are reported as
// overdraw.ErrShaderUnavailable before any device is touched.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}

	for _, s := range []shaders.Source{{Name: "replace", WGSL: b.replaceSrc}, {Name: "reduce", WGSL: b.reduceSrc}} {
		err := shaders.Validate(s.WGSL)
		switch {
		case err == nil:
		case errors.Is(err, shaders.ErrUnsupported):
			slogger().Debug("gpu: shader not translatable by naga, passing WGSL to the driver", "shader", s.Name, "err", err)
		default:
			slogger().Warn("gpu: shader unavailable", "shader", s.Name, "err", err)
			return fmt.Errorf("%w: %s: %v", overdraw.ErrShaderUnavailable, s.Name, err)
		}
	}

	if b.device == nil {
		if err := b.initDevice(); err != nil {
			return err
		}
	}

	pipes, err := newPipelines(b.device, b.queue, b.replaceSrc, b.reduceSrc)
	if err != nil {
		b.releaseDevice()
		return fmt.Errorf("%w: %v", overdraw.ErrShaderUnavailable, err)
	}
	b.pipes = pipes
	b.ready = true
	slogger().Info("gpu: overdraw backend initialized", "adapter", b.adapterName, "shared_device", b.externalDevice)
	return nil
}

func (b *Backend) initDevice() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("gpu: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("gpu: open device: %w", err)
	}
	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.externalDevice = false
	b.adapterName = selected.Info.Name
	return nil
}

// releaseDevice drops the device, destroying it only if the backend owns it.
func (b *Backend) releaseDevice() {
	if !b.externalDevice {
		if b.device != nil {
			b.device.Destroy()
		}
		if b.instance != nil {
			b.instance.Destroy()
		}
		b.device = nil
		b.queue = nil
	}
	b.instance = nil
}

// Close destroys the pipelines and, when owned, the device. Buffers still
// alive at this point are reported and leaked to the device teardown.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.live.Load(); n > 0 {
		slogger().Warn("gpu: backend closed with live buffers", "count", n)
	}
	if b.pipes != nil {
		b.pipes.destroy()
		b.pipes = nil
	}
	b.releaseDevice()
	b.ready = false
}

// SetDeviceProvider switches the backend to a shared device from the host.
// The provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue. Buffers created on the previous
// device must be released first.
func (b *Backend) SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.live.Load(); n > 0 {
		return fmt.Errorf("gpu: %d buffers still live on the current device", n)
	}

	wasReady := b.ready
	if b.pipes != nil {
		b.pipes.destroy()
		b.pipes = nil
	}
	b.releaseDevice()
	b.device = device
	b.queue = queue
	b.externalDevice = true
	b.adapterName = "shared"
	b.ready = false

	if wasReady {
		pipes, err := newPipelines(b.device, b.queue, b.replaceSrc, b.reduceSrc)
		if err != nil {
			return fmt.Errorf("%w: recreate pipelines on shared device: %v", overdraw.ErrShaderUnavailable, err)
		}
		b.pipes = pipes
		b.ready = true
	}
	slogger().Info("gpu: switched to shared GPU device", "format", provider.SurfaceFormat())
	return nil
}

// LiveBuffers returns the number of allocated, unreleased buffers.
func (b *Backend) LiveBuffers() int { return int(b.live.Load()) }

func (b *Backend) checkReady() error {
	if !b.ready {
		return errNotInitialized
	}
	return nil
}

// ReplacementShader implements overdraw.Backend.
func (b *Backend) ReplacementShader() overdraw.ReplacementShader { return b.shader }

// submitAndWait ends encoding, submits the command buffer and blocks until
// the GPU signals the fence. The wait is bounded by the fence timeout and
// by ctx's deadline.
func (b *Backend) submitAndWait(ctx context.Context, encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	if err := ctx.Err(); err != nil {
		return err
	}

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	timeout := b.fenceTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, max(time.Until(dl), 0))
	}
	fenceOK, err := b.device.Wait(fence, 1, timeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

func (b *Backend) newEncoder(label string) (hal.CommandEncoder, error) {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return encoder, nil
}

func (b *Backend) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}
