package overdraw

import (
	"log/slog"
	"time"
)

// MonitorOption configures a Monitor during creation.
//
// Example:
//
//	m, err := overdraw.NewMonitor(b, cam,
//	    overdraw.WithSamplePeriod(500*time.Millisecond),
//	    overdraw.WithComputeCamera(probe))
type MonitorOption func(*monitorOptions)

type monitorOptions struct {
	samplePeriod   time.Duration
	logger         *slog.Logger
	computeCamera  Camera
	disablePrimary bool
}

func defaultMonitorOptions() monitorOptions {
	return monitorOptions{
		samplePeriod:   DefaultSamplePeriod,
		logger:         nil, // resolved to Logger() at creation
		disablePrimary: true,
	}
}

// WithSamplePeriod sets the statistics window length.
// Values <= 0 keep DefaultSamplePeriod.
func WithSamplePeriod(d time.Duration) MonitorOption {
	return func(o *monitorOptions) {
		if d > 0 {
			o.samplePeriod = d
		}
	}
}

// WithLogger sets a logger for this monitor instead of the package logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(o *monitorOptions) {
		o.logger = l
	}
}

// WithComputeCamera measures through a separate camera that copies the
// source camera every frame. The source camera is then never modified.
// The compute camera must implement CameraCopier.
func WithComputeCamera(c Camera) MonitorOption {
	return func(o *monitorOptions) {
		o.computeCamera = c
	}
}

// WithPrimaryDisable controls whether a primary camera's normal rendering
// is turned off for the duration of the capture pass. Enabled by default.
func WithPrimaryDisable(enabled bool) MonitorOption {
	return func(o *monitorOptions) {
		o.disablePrimary = enabled
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	monitor        []MonitorOption
	logger         *slog.Logger
	computeFactory func(src Camera) Camera
}

// WithMonitorOptions applies opts to every monitor the registry creates.
func WithMonitorOptions(opts ...MonitorOption) RegistryOption {
	return func(o *registryOptions) {
		o.monitor = append(o.monitor, opts...)
	}
}

// WithRegistryLogger sets the registry logger. Monitors inherit it unless
// WithLogger is also passed through WithMonitorOptions.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = l
	}
}

// WithComputeCameras measures every tracked camera through its own compute
// camera, created by newCamera when tracking starts. The returned camera
// must implement CameraCopier.
func WithComputeCameras(newCamera func(src Camera) Camera) RegistryOption {
	return func(o *registryOptions) {
		o.computeFactory = newCamera
	}
}
