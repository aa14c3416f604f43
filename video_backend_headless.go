//go:build headless

package compositor

import "sync/atomic"

// headlessSurface is the //go:build headless counterpart of ebitenSurface,
// letting RenderLoop, LayerBlender and AudioScheduler run under `go test`
// without a GPU or window manager.
type headlessSurface struct {
	started    bool
	width      int
	height     int
	frameCount uint64
}

func newEbitenSurface(width, height int) (Surface, error) {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &headlessSurface{width: width, height: height}, nil
}

func (s *headlessSurface) Start() error {
	s.started = true
	return nil
}

func (s *headlessSurface) Stop() error {
	s.started = false
	return nil
}

func (s *headlessSurface) Close() error {
	return s.Stop()
}

func (s *headlessSurface) IsStarted() bool {
	return s.started
}

func (s *headlessSurface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return newError(InvalidState, "Resize", "width and height must be positive", nil)
	}
	s.width, s.height = width, height
	return nil
}

func (s *headlessSurface) Dimensions() (int, int) {
	return s.width, s.height
}

func (s *headlessSurface) DrawFrame(pix []byte) error {
	atomic.AddUint64(&s.frameCount, 1)
	return nil
}

func (s *headlessSurface) WaitForVSync() error {
	return nil
}

func (s *headlessSurface) FrameCount() uint64 {
	return atomic.LoadUint64(&s.frameCount)
}
