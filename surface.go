package compositor

import "fmt"

// Surface is the minimal render-target abstraction the render loop draws
// composited frames into and takes its vsync tick from. Generalizes the
// teacher's VideoOutput (display-chip output) to a single opaque RGBA
// destination, since the compositor has exactly one output surface rather
// than a bank of selectable video chips.
type Surface interface {
	Start() error
	Stop() error
	Close() error
	IsStarted() bool

	Resize(width, height int) error
	Dimensions() (width, height int)

	// DrawFrame presents a fully composited RGBA buffer. Called at most once
	// per render loop tick, after the Layer Blender has finished writing it.
	DrawFrame(pix []byte) error

	// WaitForVSync blocks until the surface's backend has presented a frame.
	// RenderLoop does not call it; its ticks come from a time.Ticker.
	WaitForVSync() error
	FrameCount() uint64
}

// SurfaceBackend selects which Surface implementation NewSurface constructs.
type SurfaceBackend int

const (
	// SurfaceEbiten drives an on-screen window via hajimehoshi/ebiten/v2.
	SurfaceEbiten SurfaceBackend = iota
)

// NewSurface constructs a Surface for the given backend. Only one backend
// currently exists at build time: SurfaceEbiten under the default build, or
// the headless stub under the "headless" build tag (both built as
// newEbitenSurface, so callers of NewSurface never branch on build tags).
func NewSurface(backend SurfaceBackend, width, height int) (Surface, error) {
	switch backend {
	case SurfaceEbiten:
		return newEbitenSurface(width, height)
	default:
		return nil, newError(InvalidState, "NewSurface", fmt.Sprintf("unknown surface backend: %d", backend), nil)
	}
}
