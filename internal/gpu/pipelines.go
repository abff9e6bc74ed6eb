//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/shaders"
)

const (
	captureFormat = gputypes.TextureFormatR32Float
	depthFormat   = gputypes.TextureFormatDepth24PlusStencil8

	// vertexStride is one overdraw.Vertex: three float32s.
	vertexStride = 12

	// paramsSize is the uniform block size of both programs.
	paramsSize = 16

	// copyPitchAlignment is the BytesPerRow alignment for texture copies.
	copyPitchAlignment = 256
)

// pipelines holds the device objects shared by every capture and result
// buffer of a backend.
type pipelines struct {
	device hal.Device

	replaceShader     hal.ShaderModule
	replaceBindLayout hal.BindGroupLayout
	replacePipeLayout hal.PipelineLayout
	depthWrite        hal.RenderPipeline // opaque geometry
	depthTest         hal.RenderPipeline // transparent geometry: test, no write

	replaceParams hal.Buffer
	replaceBind   hal.BindGroup
	weight        float32 // value last uploaded to replaceParams

	reduceShader     hal.ShaderModule
	reduceBindLayout hal.BindGroupLayout
	reducePipeLayout hal.PipelineLayout
	reduce           hal.ComputePipeline
}

func newPipelines(device hal.Device, queue hal.Queue, replaceSrc, reduceSrc string) (*pipelines, error) {
	p := &pipelines{device: device}
	if err := p.createReplace(replaceSrc); err != nil {
		p.destroy()
		return nil, err
	}
	if err := p.createReduce(reduceSrc); err != nil {
		p.destroy()
		return nil, err
	}
	if err := p.createReplaceParams(queue); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

func (p *pipelines) createReplace(src string) error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "overdraw_replace",
		Source: hal.ShaderSource{WGSL: src},
	})
	if err != nil {
		return fmt.Errorf("compile replace shader: %w", err)
	}
	p.replaceShader = shader

	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "overdraw_replace_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create replace bind group layout: %w", err)
	}
	p.replaceBindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "overdraw_replace_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.replaceBindLayout},
	})
	if err != nil {
		return fmt.Errorf("create replace pipeline layout: %w", err)
	}
	p.replacePipeLayout = pipeLayout

	if p.depthWrite, err = p.createReplacePipeline("overdraw_replace_depth_write", true); err != nil {
		return err
	}
	if p.depthTest, err = p.createReplacePipeline("overdraw_replace_depth_test", false); err != nil {
		return err
	}
	return nil
}

// createReplacePipeline builds the additive R32Float pipeline. Depth is
// tested with Less in both variants; only opaque draws write it.
func (p *pipelines) createReplacePipeline(label string, depthWrite bool) (hal.RenderPipeline, error) {
	additive := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		},
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: p.replacePipeLayout,
		Vertex: hal.VertexState{
			Module:     p.replaceShader,
			EntryPoint: shaders.ReplaceVertexEntry,
			Buffers:    replaceVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.replaceShader,
			EntryPoint: shaders.ReplaceFragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    captureFormat,
					Blend:     &additive,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: depthWrite,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0x00,
			StencilWriteMask:  0x00,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return pipeline, nil
}

func replaceVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0}, // clip-space position
			},
		},
	}
}

// createReplaceParams allocates the weight uniform and its bind group. The
// weight is uploaded lazily by syncWeight.
func (p *pipelines) createReplaceParams(queue hal.Queue) error {
	buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overdraw_replace_params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create replace params buffer: %w", err)
	}
	p.replaceParams = buf

	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "overdraw_replace_bind",
		Layout: p.replaceBindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: paramsSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create replace bind group: %w", err)
	}
	p.replaceBind = bg
	p.syncWeight(queue, overdraw.FragmentWeightValue())
	return nil
}

// syncWeight uploads w if it differs from the last uploaded weight.
func (p *pipelines) syncWeight(queue hal.Queue, w float32) {
	if w == p.weight {
		return
	}
	queue.WriteBuffer(p.replaceParams, 0, makeReplaceParams(w))
	p.weight = w
}

func makeReplaceParams(weight float32) []byte {
	buf := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(weight))
	return buf
}

// makeReduceParams lays out the reduce uniform: row stride in floats, grid
// width in slots, weight.
func makeReduceParams(rowStride, gridWidth uint32, weight float32) []byte {
	buf := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(buf[0:4], rowStride)
	binary.LittleEndian.PutUint32(buf[4:8], gridWidth)
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(weight))
	return buf
}

func (p *pipelines) createReduce(src string) error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "overdraw_reduce",
		Source: hal.ShaderSource{WGSL: src},
	})
	if err != nil {
		return fmt.Errorf("compile reduce shader: %w", err)
	}
	p.reduceShader = shader

	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "overdraw_reduce_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create reduce bind group layout: %w", err)
	}
	p.reduceBindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "overdraw_reduce_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.reduceBindLayout},
	})
	if err != nil {
		return fmt.Errorf("create reduce pipeline layout: %w", err)
	}
	p.reducePipeLayout = pipeLayout

	pipeline, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "overdraw_reduce_pipeline", Layout: p.reducePipeLayout,
		Compute: hal.ComputeState{Module: p.reduceShader, EntryPoint: shaders.ReduceEntry},
	})
	if err != nil {
		return fmt.Errorf("create reduce compute pipeline: %w", err)
	}
	p.reduce = pipeline
	return nil
}

// destroy releases everything in reverse creation order.
func (p *pipelines) destroy() {
	if p.device == nil {
		return
	}
	if p.replaceBind != nil {
		p.device.DestroyBindGroup(p.replaceBind)
		p.replaceBind = nil
	}
	if p.replaceParams != nil {
		p.device.DestroyBuffer(p.replaceParams)
		p.replaceParams = nil
	}
	if p.reduce != nil {
		p.device.DestroyComputePipeline(p.reduce)
		p.reduce = nil
	}
	if p.reducePipeLayout != nil {
		p.device.DestroyPipelineLayout(p.reducePipeLayout)
		p.reducePipeLayout = nil
	}
	if p.reduceBindLayout != nil {
		p.device.DestroyBindGroupLayout(p.reduceBindLayout)
		p.reduceBindLayout = nil
	}
	if p.reduceShader != nil {
		p.device.DestroyShaderModule(p.reduceShader)
		p.reduceShader = nil
	}
	if p.depthTest != nil {
		p.device.DestroyRenderPipeline(p.depthTest)
		p.depthTest = nil
	}
	if p.depthWrite != nil {
		p.device.DestroyRenderPipeline(p.depthWrite)
		p.depthWrite = nil
	}
	if p.replacePipeLayout != nil {
		p.device.DestroyPipelineLayout(p.replacePipeLayout)
		p.replacePipeLayout = nil
	}
	if p.replaceBindLayout != nil {
		p.device.DestroyBindGroupLayout(p.replaceBindLayout)
		p.replaceBindLayout = nil
	}
	if p.replaceShader != nil {
		p.device.DestroyShaderModule(p.replaceShader)
		p.replaceShader = nil
	}
}
