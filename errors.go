package overdraw

import "errors"

// Measurement errors. A failed frame never touches statistics; callers
// match these with errors.Is and keep running.
var (
	// ErrMissingTarget is returned when the monitored camera is nil or has
	// been destroyed by the host.
	ErrMissingTarget = errors.New("overdraw: camera missing or destroyed")

	// ErrResourceExhausted is returned when the capture buffer would need
	// more than ResultDim tiles along either axis.
	ErrResourceExhausted = errors.New("overdraw: tile grid exceeds result buffer")

	// ErrEmptyTileGrid is returned when the camera is smaller than one tile
	// along either axis, so no pixel can be processed.
	ErrEmptyTileGrid = errors.New("overdraw: camera smaller than one tile")

	// ErrShaderUnavailable is returned by Backend.Init when the replacement
	// shader or the reduction program cannot be loaded.
	ErrShaderUnavailable = errors.New("overdraw: shader unavailable")

	// ErrMonitorClosed is returned by operations on a closed monitor.
	ErrMonitorClosed = errors.New("overdraw: monitor closed")

	// ErrDetached is returned by Measure while the monitor is detached.
	ErrDetached = errors.New("overdraw: monitor detached")

	// ErrForeignBuffer is returned when a backend receives a buffer created
	// by a different backend.
	ErrForeignBuffer = errors.New("overdraw: buffer belongs to another backend")

	// ErrNoComputeCopy is returned when a compute camera cannot copy the
	// state of its source camera.
	ErrNoComputeCopy = errors.New("overdraw: compute camera does not implement CopyFrom")
)
