package overdraw

import "context"

// CameraID identifies a host camera across frames.
type CameraID string

// ClearMode is how a camera prepares its target before drawing.
type ClearMode uint8

const (
	// ClearSkybox clears to the host's background (the usual default).
	ClearSkybox ClearMode = iota
	// ClearSolidColor clears color to ClearColor and depth to the far plane.
	ClearSolidColor
	// ClearDepthOnly clears depth and keeps color.
	ClearDepthOnly
	// ClearNothing keeps both color and depth.
	ClearNothing
)

// String returns the clear mode name.
func (m ClearMode) String() string {
	switch m {
	case ClearSkybox:
		return "skybox"
	case ClearSolidColor:
		return "solid"
	case ClearDepthOnly:
		return "depth"
	case ClearNothing:
		return "nothing"
	default:
		return "unknown"
	}
}

// Color is a linear RGBA color.
type Color struct {
	R, G, B, A float32
}

// Transparent is transparent black, the capture clear color.
var Transparent = Color{}

// RenderTarget is anything a camera can render into. A nil target means
// the camera's default output (usually the screen).
type RenderTarget interface {
	Size() (width, height int)
}

// Camera is the host camera a Monitor measures. Implementations are owned
// by the host; the monitor only borrows them for the capture pass.
type Camera interface {
	ID() CameraID
	Name() string

	// Alive reports false once the host destroyed the camera.
	Alive() bool
	// Active reports whether the camera is active and enabled in the host
	// scene, the condition for being tracked.
	Active() bool
	// Primary reports whether this is the host's main camera.
	Primary() bool

	PixelSize() (width, height int)

	ClearMode() ClearMode
	SetClearMode(ClearMode)
	ClearColor() Color
	SetClearColor(Color)
	Target() RenderTarget
	SetTarget(RenderTarget)
	Enabled() bool
	SetEnabled(bool)

	// RenderWithShader renders the camera's view into its current target
	// with shader substituted for every material.
	RenderWithShader(ctx context.Context, shader ReplacementShader) error
}

// CameraCopier is implemented by cameras that can mirror another camera's
// view, projection and output size. Compute cameras must implement it.
type CameraCopier interface {
	CopyFrom(src Camera)
}

// cameraState is the part of a camera the capture pass overrides.
type cameraState struct {
	clearMode  ClearMode
	clearColor Color
	target     RenderTarget
	enabled    bool
}

func saveCamera(c Camera) cameraState {
	return cameraState{
		clearMode:  c.ClearMode(),
		clearColor: c.ClearColor(),
		target:     c.Target(),
		enabled:    c.Enabled(),
	}
}

// restore writes the snapshot back. A camera destroyed mid-pass is left
// alone.
func (s cameraState) restore(c Camera) {
	if c == nil || !c.Alive() {
		return
	}
	c.SetTarget(s.target)
	c.SetClearMode(s.clearMode)
	c.SetClearColor(s.clearColor)
	c.SetEnabled(s.enabled)
}

// alive reports whether c is non-nil and not destroyed.
func alive(c Camera) bool {
	return c != nil && c.Alive()
}
