package backend

import (
	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/internal/cpu"
)

func init() {
	Register(Software, func() overdraw.Backend {
		return cpu.New()
	})
}

// NewSoftware returns an uninitialized software backend.
func NewSoftware() overdraw.Backend {
	return cpu.New()
}
