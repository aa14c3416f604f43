package compositor

import (
	"context"

	"github.com/rs/zerolog"
)

// Config configures a Compositor, built with functional options rather than
// a struct literal since it's embedded by host applications (spec.md §6:
// no env vars/files read at this layer), generalized from the teacher's
// DisplayConfig/GUIConfig value-struct convention.
type Config struct {
	log        zerolog.Logger
	width      int
	height     int
	fps        float64
	sampleRate int
	masterVolume float64
	fitMode    FitMode
	surface    SurfaceBackend
}

type Option func(*Config)

func WithLogger(log zerolog.Logger) Option { return func(c *Config) { c.log = log } }
func WithDimensions(w, h int) Option       { return func(c *Config) { c.width, c.height = w, h } }
func WithFPS(fps float64) Option           { return func(c *Config) { c.fps = fps } }
func WithSampleRate(hz int) Option         { return func(c *Config) { c.sampleRate = hz } }
func WithMasterVolume(v float64) Option    { return func(c *Config) { c.masterVolume = v } }
func WithFitMode(m FitMode) Option         { return func(c *Config) { c.fitMode = m } }

func defaultConfig() Config {
	return Config{
		log:          defaultLogger(),
		width:        1280,
		height:       720,
		fps:          60,
		sampleRate:   48000,
		masterVolume: 1,
		fitMode:      FitContain,
		surface:      SurfaceEbiten,
	}
}

// Compositor is C8: the single entry point a host application embeds,
// wiring the Source Pool, Layer Blender, Audio Scheduler, Render Loop, and
// Worker Host together (spec.md §3 "Compositor Façade"). Grounded on the
// teacher's top-level emulator struct that owns and starts every subsystem.
type Compositor struct {
	cfg Config

	surface Surface
	pool    *SourcePool
	blender *LayerBlender
	clock   *audioClock
	sink    audioSink
	sched   *AudioScheduler
	loop    *RenderLoop
	worker  *WorkerHost
	events  *eventBus
	metrics *metrics

	reqCounter uint64
}

// New constructs a Compositor ready for LoadVideo/LoadImage/.../Play calls.
func New(opts ...Option) (*Compositor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := newMetrics()
	surface, err := NewSurface(cfg.surface, cfg.width, cfg.height)
	if err != nil {
		return nil, err
	}
	pool := newSourcePool(cfg.log, m)
	blender := newLayerBlender(pool, cfg.width, cfg.height, cfg.fitMode, m)
	clock := newAudioClock(cfg.sampleRate)

	sink, err := newAudioSinkForBuild(clock)
	if err != nil {
		return nil, err
	}
	sched := newAudioScheduler(pool, sink, clock, cfg.masterVolume, cfg.log, m)
	loop := newRenderLoop(surface, blender, sched, cfg.fps, cfg.log, m)
	worker := newWorkerHost(pool, blender, surface, cfg.log, m)

	c := &Compositor{
		cfg:     cfg,
		surface: surface,
		pool:    pool,
		blender: blender,
		clock:   clock,
		sink:    sink,
		sched:   sched,
		loop:    loop,
		worker:  worker,
		events:  newEventBus(),
		metrics: m,
	}
	loop.SetOnTimeUpdate(func(t float64) {
		c.events.emit(Event{Kind: EventTimeUpdate, Time: t})
	})
	loop.SetOnEnded(func() {
		c.events.emit(Event{Kind: EventEnded})
	})
	loop.SetOnError(func(err error) {
		c.events.emit(Event{Kind: EventError, Err: err})
	})
	return c, nil
}

func (c *Compositor) nextReqID() uint64 {
	c.reqCounter++
	return c.reqCounter
}

// LoadVideo loads a video source through the worker host, returning its
// SourceID for use in CompositionFrame layers.
func (c *Compositor) LoadVideo(ctx context.Context, url string) (SourceID, error) {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgLoadVideo, URL: url})
	c.emitSourceLoaded(resp)
	return resp.SourceID, resp.Err
}

func (c *Compositor) LoadAudio(ctx context.Context, url string) (SourceID, error) {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgLoadAudio, URL: url})
	c.emitSourceLoaded(resp)
	return resp.SourceID, resp.Err
}

func (c *Compositor) LoadImage(path string) (SourceID, error) {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgLoadImage, ImagePath: path})
	c.emitSourceLoaded(resp)
	return resp.SourceID, resp.Err
}

func (c *Compositor) LoadText(opts TextOptions) (SourceID, error) {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgLoadText, TextOpts: opts})
	c.emitSourceLoaded(resp)
	return resp.SourceID, resp.Err
}

// UpdateText re-rasterizes an already-loaded text source in place.
func (c *Compositor) UpdateText(id SourceID, opts TextOptions) error {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgUpdateText, SourceID: id, TextOpts: opts})
	return resp.Err
}

func (c *Compositor) Unload(id SourceID) error {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgUnload, SourceID: id})
	if resp.Err == nil {
		c.events.emit(Event{Kind: EventSourceUnloaded, SourceID: id})
	}
	return resp.Err
}

func (c *Compositor) emitSourceLoaded(resp Response) {
	if resp.Err == nil {
		c.events.emit(Event{Kind: EventSourceLoaded, SourceID: resp.SourceID})
	}
}

// SetComposition installs the per-tick callback and total duration used by
// the render loop (spec.md §4.4).
func (c *Compositor) SetComposition(fn GetCompositionFunc, duration float64) {
	c.loop.setComposition(fn, duration)
	c.events.emit(Event{Kind: EventCompositionChange})
}

func (c *Compositor) Play() error  { c.events.emit(Event{Kind: EventPlay}); return c.loop.Play() }
func (c *Compositor) Pause() error { c.events.emit(Event{Kind: EventPause}); return c.loop.Pause() }

func (c *Compositor) Seek(t float64) error {
	c.events.emit(Event{Kind: EventSeeking, Time: t})
	err := c.loop.Seek(t)
	c.events.emit(Event{Kind: EventSeeked, Time: t})
	return err
}

func (c *Compositor) State() CompositorState { return c.loop.snapshot() }

// On subscribes fn to kind, returning an unsubscribe function.
func (c *Compositor) On(kind EventKind, fn func(Event)) func() {
	return c.events.On(kind, fn)
}

// ExportFrame renders a single composed frame at t without affecting
// playback state. It does not pause the loop and takes no render lock: it
// blends into a freshly allocated image and never writes to the surface.
func (c *Compositor) ExportFrame(ctx context.Context, t float64) (*RGBAImage, error) {
	frame := c.loop.currentComposition()
	if frame == nil {
		return nil, newError(InvalidState, "exportFrame", "no composition set", nil)
	}
	return c.blender.Render(ctx, frame(t))
}

// Render performs a one-shot blend+draw of frame without advancing the
// render loop's clock (spec.md §4.6 "render(frame)").
func (c *Compositor) Render(ctx context.Context, frame CompositionFrame) error {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgRender, Frame: frame})
	return resp.Err
}

// Clear unloads every registered source (spec.md §4.6 "clear()").
func (c *Compositor) Clear() error {
	resp := c.worker.send(Request{ID: c.nextReqID(), Kind: MsgClear})
	return resp.Err
}

// SetFitMode/GetFitMode control the compositor-wide default a layer falls
// back to when its own FitMode is FitAuto (spec.md §4.6).
func (c *Compositor) SetFitMode(mode FitMode) { c.blender.setFitMode(mode) }
func (c *Compositor) GetFitMode() FitMode     { return c.blender.getFitMode() }

// SetVolume/SetMuted control the master gain stage every audio layer mixes
// through (spec.md §4.6).
func (c *Compositor) SetVolume(v float64) { c.sched.SetMasterVolume(v) }
func (c *Compositor) SetMuted(m bool)     { c.sched.SetMasterMuted(m) }

// Resize changes the output surface and blender target dimensions.
func (c *Compositor) Resize(width, height int) error {
	if err := c.surface.Resize(width, height); err != nil {
		return err
	}
	c.blender.resize(width, height)
	return nil
}

// Dispose tears down the render loop, worker host, audio sink, and every
// loaded source (spec.md §4.4 terminal "Disposed" state).
func (c *Compositor) Dispose() error {
	err := c.loop.Dispose()
	c.sched.close()
	c.worker.close()
	if poolErr := c.pool.Close(); poolErr != nil && err == nil {
		err = poolErr
	}
	return err
}
