package overdraw

import (
	"testing"
	"time"
)

func TestDefaultMonitorOptions(t *testing.T) {
	o := defaultMonitorOptions()
	if o.samplePeriod != DefaultSamplePeriod {
		t.Errorf("samplePeriod = %v, want %v", o.samplePeriod, DefaultSamplePeriod)
	}
	if !o.disablePrimary {
		t.Error("primary cameras should be disabled during capture by default")
	}
	if o.computeCamera != nil || o.logger != nil {
		t.Error("compute camera and logger should be unset by default")
	}
}

func TestWithSamplePeriod(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"custom", 250 * time.Millisecond, 250 * time.Millisecond},
		{"zero keeps default", 0, DefaultSamplePeriod},
		{"negative keeps default", -time.Second, DefaultSamplePeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultMonitorOptions()
			WithSamplePeriod(tt.in)(&o)
			if o.samplePeriod != tt.want {
				t.Errorf("samplePeriod = %v, want %v", o.samplePeriod, tt.want)
			}
		})
	}
}

func TestMonitorUsesSamplePeriod(t *testing.T) {
	m, err := NewMonitor(&fakeBackend{}, newFakeCamera("cam", 64, 64, 1), WithSamplePeriod(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if got := m.agg.Period(); got != 50*time.Millisecond {
		t.Errorf("aggregator period = %v, want 50ms", got)
	}
}

func TestWithMonitorOptionsAccumulates(t *testing.T) {
	var o registryOptions
	WithMonitorOptions(WithSamplePeriod(time.Second))(&o)
	WithMonitorOptions(WithPrimaryDisable(false), WithSamplePeriod(2*time.Second))(&o)
	if len(o.monitor) != 3 {
		t.Fatalf("monitor options = %d, want 3", len(o.monitor))
	}
	mo := defaultMonitorOptions()
	for _, opt := range o.monitor {
		opt(&mo)
	}
	if mo.samplePeriod != 2*time.Second || mo.disablePrimary {
		t.Errorf("applied options = %+v, want period 2s and primary disable off", mo)
	}
}
