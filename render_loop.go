package compositor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// GetCompositionFunc is the host application's per-tick callback: given the
// current playback time, return what to draw and play (spec.md §3/§4.4).
type GetCompositionFunc func(t float64) CompositionFrame

// RenderLoop is C6: the state machine driving when LayerBlender.Render and
// AudioScheduler get invoked, adapted from the teacher's VideoCompositor
// refresh loop (time.Ticker-driven, renderPending-style reentrancy guard)
// generalized to the full Idle/Configured/Playing/Paused/Seeking/Ended/
// Disposed machine spec.md §4.4 requires.
type RenderLoop struct {
	mu    sync.Mutex
	state LoopState

	surface   Surface
	blender   *LayerBlender
	scheduler *AudioScheduler
	getComposition GetCompositionFunc
	log       zerolog.Logger
	m         *metrics

	currentTime float64
	duration    float64
	fps         float64

	renderPending atomic.Bool
	done          chan struct{}
	ticking       bool

	seekQueuedPlay bool

	onTimeUpdate func(t float64)
	onEnded      func()
	onError      func(err error)
	lastTimeUpdateEmit time.Time
	lastFrameTime      time.Time
}

func newRenderLoop(surface Surface, blender *LayerBlender, scheduler *AudioScheduler, fps float64, log zerolog.Logger, m *metrics) *RenderLoop {
	if fps <= 0 {
		fps = 60
	}
	return &RenderLoop{
		state:   StateIdle,
		surface: surface,
		blender: blender,
		scheduler: scheduler,
		fps:     fps,
		log:     log,
		m:       m,
	}
}

func (r *RenderLoop) setComposition(fn GetCompositionFunc, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getComposition = fn
	r.duration = duration
	if r.state == StateIdle {
		r.state = StateConfigured
	}
}

func (r *RenderLoop) currentComposition() GetCompositionFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getComposition
}

func (r *RenderLoop) snapshot() CompositorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return CompositorState{
		Playing:     r.state == StatePlaying,
		CurrentTime: r.currentTime,
		Duration:    r.duration,
		Seeking:     r.state == StateSeeking,
	}
}

// Play transitions Configured/Paused/Ended -> Playing and starts the tick
// goroutine if it isn't already running. If called during a Seek, the play
// is queued behind the seek's completion (spec.md §4.4 "play queued behind
// seek").
func (r *RenderLoop) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateDisposed:
		return newError(InvalidState, "play", "compositor disposed", nil)
	case StateSeeking:
		r.seekQueuedPlay = true
		return nil
	case StatePlaying:
		return nil
	case StateEnded:
		r.currentTime = 0
	}
	r.state = StatePlaying
	r.lastFrameTime = time.Now()
	r.scheduler.bumpEpoch()
	if !r.ticking {
		r.ticking = true
		r.done = make(chan struct{})
		go r.tickLoop(r.done)
	}
	return nil
}

func (r *RenderLoop) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDisposed {
		return newError(InvalidState, "pause", "compositor disposed", nil)
	}
	r.seekQueuedPlay = false
	if r.state == StatePlaying {
		r.state = StatePaused
		r.scheduler.bumpEpoch()
	}
	return nil
}

// Seek moves currentTime and transitions through Seeking back to the state
// that was active beforehand (Playing resumes automatically; Paused stays
// paused) unless Play() was called while seeking, in which case playback
// resumes regardless (spec.md §4.4).
func (r *RenderLoop) Seek(t float64) error {
	r.mu.Lock()
	if r.state == StateDisposed {
		r.mu.Unlock()
		return newError(InvalidState, "seek", "compositor disposed", nil)
	}
	wasPlaying := r.state == StatePlaying
	r.state = StateSeeking
	r.scheduler.bumpEpoch()
	r.mu.Unlock()

	clamped := clampSourceTime(t, r.duration)

	r.mu.Lock()
	r.currentTime = clamped
	resume := wasPlaying || r.seekQueuedPlay
	r.seekQueuedPlay = false
	if resume {
		r.state = StatePlaying
		r.lastFrameTime = time.Now()
		if !r.ticking {
			r.ticking = true
			r.done = make(chan struct{})
			go r.tickLoop(r.done)
		}
	} else {
		r.state = StatePaused
	}
	r.mu.Unlock()
	return nil
}

func (r *RenderLoop) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDisposed {
		return nil
	}
	r.state = StateDisposed
	r.scheduler.bumpEpoch()
	if r.ticking {
		close(r.done)
		r.ticking = false
	}
	return r.surface.Close()
}

func (r *RenderLoop) SetOnTimeUpdate(fn func(t float64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTimeUpdate = fn
}

func (r *RenderLoop) SetOnEnded(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnded = fn
}

func (r *RenderLoop) SetOnError(fn func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// tickLoop is the fps-throttled loop, grounded on the teacher's
// refreshLoop (time.Ticker + done channel). While the state is Paused,
// Seeking or Configured it keeps running and each tick does nothing; it
// exits when playback reaches the end or the loop is disposed.
func (r *RenderLoop) tickLoop(done chan struct{}) {
	interval := time.Duration(float64(time.Second) / r.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !r.tick() {
				return
			}
		}
	}
}

// tick advances the playback clock by the wall-clock delta since the last
// tick (spec.md §4.4: dt = now - lastFrameTime, not a fixed 1/fps increment,
// so a slow render or a delayed ticker fire doesn't leave currentTime behind
// real time) and always pumps the audio scheduler, even when drawing this
// frame is skipped. Drawing is the only thing the renderPending guard gates:
// if the previous frame's blend+draw is still running in its own goroutine,
// this tick's frame is dropped rather than queued, but the clock and audio
// state still advance (spec.md §4.4 "if set, still advance clock/pump audio
// but skip drawing").
func (r *RenderLoop) tick() bool {
	r.mu.Lock()
	if r.state != StatePlaying {
		r.mu.Unlock()
		return r.state != StateDisposed
	}
	getComposition := r.getComposition

	now := time.Now()
	dt := now.Sub(r.lastFrameTime).Seconds()
	if dt <= 0 || dt > 1 {
		// A non-positive delta or a long stall (debugger pause, suspended
		// process): fall back to the nominal frame interval instead of
		// jumping the clock. Play and Seek set lastFrameTime, so the first
		// tick after them measures real elapsed time from that call.
		dt = 1 / r.fps
	}
	r.lastFrameTime = now

	r.currentTime += dt
	ended := r.duration > 0 && r.currentTime >= r.duration
	if ended {
		r.currentTime = r.duration
		r.state = StateEnded
		// tickLoop returns after this tick; clearing ticking here lets a
		// later Play start a fresh tick goroutine.
		r.ticking = false
	}
	cur := r.currentTime
	onEnded := r.onEnded
	r.mu.Unlock()

	if getComposition != nil {
		frame := getComposition(cur)
		r.scheduler.setLayers(frame.Audio, cur)

		if r.renderPending.CompareAndSwap(false, true) {
			go r.renderFrame(frame)
		} else if r.m != nil {
			r.m.framesSkipped.Inc()
		}
	}

	r.emitTimeUpdate(cur)
	if ended && onEnded != nil {
		onEnded()
	}
	return !ended
}

// renderFrame does the actual blend+draw off the tick goroutine, so a slow
// render overlaps the next tick's clock/audio advance instead of blocking it.
func (r *RenderLoop) renderFrame(frame CompositionFrame) {
	defer r.renderPending.Store(false)

	img, err := r.blender.Render(context.Background(), frame)
	if err != nil {
		r.log.Warn().Err(err).Msg("render failed, skipping frame")
		r.reportError(err)
		return
	}
	if err := r.surface.DrawFrame(img.Pix); err != nil {
		r.log.Warn().Err(err).Msg("draw failed, skipping frame")
		r.reportError(err)
	}
}

func (r *RenderLoop) reportError(err error) {
	r.mu.Lock()
	fn := r.onError
	r.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// emitTimeUpdate throttles onTimeUpdate callbacks to at most once per 100ms
// (spec.md §4.4: "dispatch timeupdate at most every 100 ms during playback").
func (r *RenderLoop) emitTimeUpdate(t float64) {
	r.mu.Lock()
	fn := r.onTimeUpdate
	due := time.Since(r.lastTimeUpdateEmit) >= 100*time.Millisecond
	if due {
		r.lastTimeUpdateEmit = time.Now()
	}
	r.mu.Unlock()
	if fn != nil && due {
		fn(t)
	}
}
