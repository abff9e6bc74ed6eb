// Package scene is a minimal host scene for driving overdraw monitors:
// cameras with clear state, an output binding and a list of quads.
package scene

import (
	"fmt"
	"sync"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/config"
)

// Scene is an ordered set of cameras keyed by name.
type Scene struct {
	mu      sync.Mutex
	cameras []*Camera
}

// New returns a scene holding cameras.
func New(cameras ...*Camera) *Scene {
	s := &Scene{}
	for _, c := range cameras {
		_ = s.Add(c)
	}
	return s
}

// Add appends c. Names must be unique among live cameras.
func (s *Scene) Add(c *Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.cameras {
		if e.name == c.name && e.Alive() {
			return fmt.Errorf("scene: duplicate camera %q", c.name)
		}
	}
	s.cameras = append(s.cameras, c)
	return nil
}

// Camera returns the live camera called name.
func (s *Scene) Camera(name string) (*Camera, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cameras {
		if c.name == name && c.Alive() {
			return c, true
		}
	}
	return nil, false
}

// Remove destroys the camera called name and drops it from the scene.
func (s *Scene) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cameras {
		if c.name == name {
			c.Destroy()
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			return true
		}
	}
	return false
}

// Cameras returns every live camera in insertion order, ready for
// overdraw.Registry.Sync.
func (s *Scene) Cameras() []overdraw.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]overdraw.Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		if c.Alive() {
			out = append(out, c)
		}
	}
	return out
}

// Resize resizes every camera in the scene, as a window resize would.
func (s *Scene) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cameras {
		c.Resize(width, height)
	}
}

// FromConfig builds the scene described by cfg.
func FromConfig(cfg *config.Config) (*Scene, error) {
	s := &Scene{}
	for _, cc := range cfg.Scene.Cameras {
		w, h := cfg.CameraSize(cc)
		opts := []CameraOption{WithLayers(cc.Layers)}
		if cc.Primary {
			opts = append(opts, WithPrimary())
		}
		for _, qc := range cc.Quads {
			if len(qc.Rect) != 4 {
				return nil, fmt.Errorf("scene: quad %q of camera %q: rect needs 4 values", qc.Name, cc.Name)
			}
			opts = append(opts, WithQuads(Quad{
				Name: qc.Name,
				X0:   qc.Rect[0], Y0: qc.Rect[1], X1: qc.Rect[2], Y1: qc.Rect[3],
				Depth:  qc.Depth,
				Opaque: qc.Opaque,
			}))
		}
		c := NewCamera(cc.Name, w, h, opts...)
		c.SetActive(!cc.Disabled)
		if err := s.Add(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}
