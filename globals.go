package overdraw

import (
	"sync"
	"sync/atomic"
)

// FragmentWeightParam names the shader global holding FragmentWeight.
const FragmentWeightParam = "OverdrawFragmentWeight"

var (
	globalsMu sync.RWMutex
	globals   = make(map[string]float32)

	weightOnce sync.Once
	weightSets atomic.Int32
)

// SetGlobalFloat stores a process-wide shader parameter visible to every
// replacement shader.
func SetGlobalFloat(name string, v float32) {
	globalsMu.Lock()
	defer globalsMu.Unlock()
	globals[name] = v
}

// GlobalFloat returns a shader parameter and whether it was set.
func GlobalFloat(name string) (float32, bool) {
	globalsMu.RLock()
	defer globalsMu.RUnlock()
	v, ok := globals[name]
	return v, ok
}

// ensureFragmentWeight publishes FragmentWeight exactly once per process,
// however many monitors are created.
func ensureFragmentWeight() {
	weightOnce.Do(func() {
		SetGlobalFloat(FragmentWeightParam, FragmentWeight)
		weightSets.Add(1)
	})
}

// FragmentWeightValue returns the weight replacement shaders must add per
// fragment, publishing it first if no monitor has done so yet.
func FragmentWeightValue() float32 {
	ensureFragmentWeight()
	v, _ := GlobalFloat(FragmentWeightParam)
	return v
}
