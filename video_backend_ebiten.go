//go:build !headless

package compositor

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// ebitenSurface implements Surface on top of an ebiten window. Adapted from
// the teacher's EbitenOutput: the keyboard/clipboard input plumbing is
// dropped (the compositor has no terminal-emulator input surface to feed),
// leaving the buffer-swap and vsync-gate machinery the render loop needs.
type ebitenSurface struct {
	running     bool
	window      *ebiten.Image
	width       int
	height      int
	frameBuffer []byte
	bufferMutex sync.RWMutex
	frameCount  uint64
	vsyncChan   chan struct{}
}

func newEbitenSurface(width, height int) (Surface, error) {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &ebitenSurface{
		width:       width,
		height:      height,
		frameBuffer: make([]byte, width*height*4),
		vsyncChan:   make(chan struct{}, 1),
	}, nil
}

func (s *ebitenSurface) Start() error {
	if s.running {
		return nil
	}
	s.running = true
	ebiten.SetWindowSize(s.width, s.height)
	ebiten.SetWindowTitle("compositor")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		_ = ebiten.RunGame(s)
	}()

	<-s.vsyncChan
	return nil
}

func (s *ebitenSurface) Stop() error {
	s.running = false
	return nil
}

func (s *ebitenSurface) Close() error {
	return s.Stop()
}

func (s *ebitenSurface) IsStarted() bool {
	return s.running
}

func (s *ebitenSurface) Resize(width, height int) error {
	s.bufferMutex.Lock()
	defer s.bufferMutex.Unlock()
	if width <= 0 || height <= 0 {
		return newError(InvalidState, "Resize", "width and height must be positive", nil)
	}
	s.width = width
	s.height = height
	s.frameBuffer = make([]byte, width*height*4)
	ebiten.SetWindowSize(width, height)
	if s.window != nil {
		s.window.Dispose()
		s.window = nil
	}
	return nil
}

func (s *ebitenSurface) Dimensions() (int, int) {
	s.bufferMutex.RLock()
	defer s.bufferMutex.RUnlock()
	return s.width, s.height
}

func (s *ebitenSurface) DrawFrame(pix []byte) error {
	s.bufferMutex.Lock()
	defer s.bufferMutex.Unlock()
	if len(pix) != len(s.frameBuffer) {
		return newError(InvalidState, "DrawFrame", "frame buffer size mismatch", nil)
	}
	copy(s.frameBuffer, pix)
	return nil
}

func (s *ebitenSurface) WaitForVSync() error {
	<-s.vsyncChan
	return nil
}

func (s *ebitenSurface) FrameCount() uint64 {
	return s.frameCount
}

// Update satisfies ebiten.Game. Window-close is the only input event the
// compositor's surface cares about; everything else is the host
// application's concern via the getComposition callback, not this surface.
func (s *ebitenSurface) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	if !s.running {
		return ebiten.Termination
	}
	return nil
}

func (s *ebitenSurface) Draw(screen *ebiten.Image) {
	if s.window == nil {
		s.window = ebiten.NewImage(s.width, s.height)
	}
	s.bufferMutex.RLock()
	s.window.WritePixels(s.frameBuffer)
	s.bufferMutex.RUnlock()
	screen.DrawImage(s.window, nil)

	s.frameCount++
	select {
	case s.vsyncChan <- struct{}{}:
	default:
	}
}

func (s *ebitenSurface) Layout(_, _ int) (int, int) {
	s.bufferMutex.RLock()
	defer s.bufferMutex.RUnlock()
	return s.width, s.height
}
