package compositor

import (
	"bytes"
	"context"
	"image/png"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WorkerHost runs the SourcePool, LayerBlender, and Surface on its own
// goroutine and answers Requests serially, the Go analog of an isolated Web
// Worker: the host application (main goroutine) never touches decode or
// draw state directly, only exchanges Request/Response values over
// channels. Grounded on the teacher's coprocessor ticket/completion map
// idiom, generalized from "one pending assembly job" to "one pending
// pending-map entry per in-flight request id". Implements all twelve
// message kinds spec.md §4.5 lists.
type WorkerHost struct {
	pool    *SourcePool
	blender *LayerBlender
	surface Surface

	reqCh   chan Request
	respFns map[uint64]chan Response // pending-map keyed by request id
	mu      sync.Mutex
	log     zerolog.Logger
	m       *metrics
	done    chan struct{}

	disposed bool
}

func newWorkerHost(pool *SourcePool, blender *LayerBlender, surface Surface, log zerolog.Logger, m *metrics) *WorkerHost {
	h := &WorkerHost{
		pool:    pool,
		blender: blender,
		surface: surface,
		reqCh:   make(chan Request, 32),
		respFns: make(map[uint64]chan Response),
		log:     log,
		m:       m,
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *WorkerHost) run() {
	for {
		select {
		case <-h.done:
			return
		case req := <-h.reqCh:
			h.handle(req)
		}
	}
}

func (h *WorkerHost) handle(req Request) {
	start := time.Now()
	resp := Response{ID: req.ID}

	if h.disposed {
		resp.Err = newError(InvalidState, "worker", "host disposed", nil)
		h.reply(req.ID, resp)
		return
	}

	switch req.Kind {
	case MsgInit:
		// No-op: the pool, blender, and surface are already constructed by
		// newWorkerHost. Present for protocol symmetry with a real
		// postMessage handshake that would transfer the offscreen surface.
	case MsgLoadVideo:
		id, err := h.pool.LoadVideo(context.Background(), req.URL)
		resp.SourceID, resp.Err = id, err
	case MsgLoadAudio:
		id, err := h.pool.LoadAudio(context.Background(), req.URL)
		resp.SourceID, resp.Err = id, err
	case MsgLoadImage:
		id, err := h.pool.LoadImage(req.ImagePath)
		resp.SourceID, resp.Err = id, err
	case MsgLoadText:
		id, err := h.pool.LoadText(req.TextOpts)
		resp.SourceID, resp.Err = id, err
	case MsgUpdateText:
		resp.Err = h.pool.UpdateText(req.SourceID, req.TextOpts)
	case MsgUnload:
		resp.Err = h.pool.Unload(req.SourceID)
	case MsgGetFrameAt:
		frame, err := h.pool.getFrameAt(context.Background(), req.SourceID, req.Time)
		resp.Frame, resp.Err = frame, err
	case MsgRender:
		resp.Err = h.render(req.Frame)
	case MsgClear:
		resp.Err = h.pool.Clear()
	case MsgResize:
		resp.Err = h.resize(req.Width, req.Height)
	case MsgExportFrame:
		data, err := h.exportFrame(req.Frame)
		resp.Exported, resp.Err = data, err
	case MsgDispose:
		h.disposed = true
		resp.Err = h.pool.Close()
	default:
		resp.Err = newError(InvalidState, "worker", "unknown message kind", nil)
	}

	if h.m != nil {
		h.m.workerRoundTrip.Observe(time.Since(start).Seconds())
	}
	h.reply(req.ID, resp)
}

// validateSources fails fast with TrackNotFound if render/exportFrame
// references a source id the pool doesn't hold, rather than letting the
// blender silently skip it the way normal playback's per-layer local
// recovery does (spec.md §4.5 §8 scenario 6: a worker-driven render call is
// a direct request, so an unknown source is the caller's error, not
// something to paper over).
func (h *WorkerHost) validateSources(frame CompositionFrame) error {
	for _, l := range frame.Layers {
		if _, ok := h.pool.lookup(l.SourceID); !ok {
			return newError(TrackNotFound, "render", "Unknown source: "+string(l.SourceID), nil)
		}
	}
	for _, a := range frame.Audio {
		if _, ok := h.pool.lookup(a.SourceID); !ok {
			return newError(TrackNotFound, "render", "Unknown source: "+string(a.SourceID), nil)
		}
	}
	return nil
}

func (h *WorkerHost) render(frame CompositionFrame) error {
	if err := h.validateSources(frame); err != nil {
		return err
	}
	img, err := h.blender.Render(context.Background(), frame)
	if err != nil {
		return err
	}
	return h.surface.DrawFrame(img.Pix)
}

func (h *WorkerHost) resize(width, height int) error {
	if err := h.surface.Resize(width, height); err != nil {
		return err
	}
	h.blender.resize(width, height)
	return nil
}

// exportFrame blends frame without touching the live surface, then encodes
// it as PNG (spec.md §6 exportFrame binary format).
func (h *WorkerHost) exportFrame(frame CompositionFrame) ([]byte, error) {
	if err := h.validateSources(frame); err != nil {
		return nil, err
	}
	img, err := h.blender.Render(context.Background(), frame)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgbaToImage(img)); err != nil {
		return nil, newError(UnknownError, "exportFrame", "png encode failed", err)
	}
	return buf.Bytes(), nil
}

func (h *WorkerHost) reply(id uint64, resp Response) {
	h.mu.Lock()
	ch, ok := h.respFns[id]
	delete(h.respFns, id)
	h.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// send submits req and blocks for its matching Response, the client side of
// the round trip for each request kind (spec.md §4.5).
func (h *WorkerHost) send(req Request) Response {
	ch := make(chan Response, 1)
	h.mu.Lock()
	h.respFns[req.ID] = ch
	h.mu.Unlock()

	select {
	case h.reqCh <- req:
	case <-h.done:
		return Response{ID: req.ID, Err: newError(InvalidState, "worker", "host stopped", nil)}
	}

	select {
	case resp := <-ch:
		return resp
	case <-h.done:
		return Response{ID: req.ID, Err: newError(InvalidState, "worker", "host stopped", nil)}
	}
}

func (h *WorkerHost) close() {
	close(h.done)
}
