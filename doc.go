// Package overdraw measures GPU fragment overdraw per camera at runtime.
//
// Overdraw is the number of fragment-shader executions per pixel in a frame.
// A ratio of 1.0 means every processed pixel was shaded exactly once; 3.0
// means the scene shaded each pixel three times on average.
//
// # Measurement
//
// Each tracked camera gets a [Monitor]. Once per frame the monitor:
//
//  1. snapshots the camera's clear mode, clear color, output target and
//     enabled flag;
//  2. binds an off-screen single-channel float capture buffer sized to the
//     camera and clears it to zero;
//  3. renders the camera with a replacement shader that adds a fixed weight
//     (1/1024) for every fragment passing the depth test;
//  4. reduces the capture buffer in 32x32 tiles into a 128x128 result buffer
//     on the GPU and reads it back;
//  5. restores the camera and records the frame in its statistics.
//
// Pixels in partial edge tiles (width or height not divisible by 32) are
// not counted, and the ratio is computed over the processed area only.
//
// # Cost
//
// The readback in step 4 blocks until the GPU has finished the frame.
// This stalls the CPU/GPU pipeline and is meant for profiling sessions,
// not for a shipping frame path.
//
// # Backends
//
// Device work goes through a [Backend]. The software backend in
// internal/cpu runs everywhere; the wgpu backend is registered by
// importing github.com/gogpu/overdraw/gpu.
//
// # Usage
//
//	b, err := backend.InitDefault()
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	reg := overdraw.NewRegistry(b)
//	defer reg.Close()
//
//	for frame := range frames {
//	    reg.Sync(scene.Cameras())
//	    reg.Frame(ctx, frame.Delta)
//	}
//	for _, s := range reg.Snapshot() {
//	    fmt.Printf("%s: %.3f\n", s.Camera, s.IntervalAverageRatio)
//	}
package overdraw
