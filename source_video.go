package compositor

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// VideoSource is C2: a decode cursor over a video stream with a one-item
// lookahead and a frame cache, source-grounded on the teacher's VideoSource
// interface generalized from "push a rendered chip frame" to "pull a decoded
// media frame at a requested time" (spec.md §3/§4.1).
type VideoSource struct {
	mu sync.Mutex // serializes decode: exactly one in-flight decode per source (spec.md §4.1)

	iter videoFrameIterator
	cache *frameCache

	cursorTime float64
	lookahead  *DecodedFrame
	ended      bool

	width, height int
	duration      float64
	frameInterval int

	m *metrics
}

func newVideoSource(iter videoFrameIterator, m *metrics) (*VideoSource, error) {
	w, h := iter.Dimensions()
	interval := iter.FrameIntervalMillis()
	cache, err := newFrameCache(w, h, float64(interval)/1000, m)
	if err != nil {
		return nil, err
	}
	return &VideoSource{
		iter:          iter,
		cache:         cache,
		width:         w,
		height:        h,
		duration:      iter.Duration(),
		frameInterval: interval,
		m:             m,
	}, nil
}

// FrameIntervalMillis exposes the probed decode cadence (SPEC_FULL §3
// "decoder probe diagnostics").
func (v *VideoSource) FrameIntervalMillis() int { return v.frameInterval }
func (v *VideoSource) Duration() float64        { return v.duration }
func (v *VideoSource) Dimensions() (int, int)    { return v.width, v.height }

// getFrameAt is the core C2 operation (spec.md §4.1):
//  1. clamp to [0, duration]
//  2. serve from cache if present
//  3. otherwise advance (or restart) the decode cursor and populate the cache
func (v *VideoSource) getFrameAt(ctx context.Context, t float64) (*DecodedFrame, error) {
	t = clampSourceTime(t, v.duration)

	v.mu.Lock()
	defer v.mu.Unlock()

	if f, ok := v.cache.get(t); ok {
		return f, nil
	}

	start := time.Now()
	defer func() {
		if v.m != nil {
			v.m.decodeLatency.Observe(time.Since(start).Seconds())
		}
	}()

	gap := t - v.cursorTime
	if gap < 0 || gap > reseekThreshold {
		if err := v.iter.SeekTo(ctx, t); err != nil {
			return nil, newError(DecodeError, "getFrameAt", "seek", err)
		}
		v.lookahead = nil
		v.ended = false
		v.cursorTime = t
		if v.m != nil {
			v.m.decoderRestarts.Inc()
		}
	}

	frame, err := v.advanceTo(ctx, t)
	if err != nil {
		return nil, err
	}
	v.cache.put(t, frame)
	v.cursorTime = frame.Timestamp
	return frame, nil
}

// advanceTo decodes forward (using the one-item lookahead) until it finds
// the frame whose [Timestamp, Timestamp+Duration) window contains t, or the
// last frame before t if t lands past the final decoded window.
func (v *VideoSource) advanceTo(ctx context.Context, t float64) (*DecodedFrame, error) {
	if v.ended {
		if v.lookahead != nil {
			return v.lookahead, nil
		}
		return nil, newError(PlaybackError, "getFrameAt", "source ended", io.EOF)
	}

	current := v.lookahead
	for {
		next, err := v.iter.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				v.ended = true
				if current != nil {
					return current, nil
				}
				return nil, newError(PlaybackError, "getFrameAt", "source ended", io.EOF)
			}
			return nil, newError(DecodeError, "getFrameAt", "decode", err)
		}
		if current == nil {
			current = next
			continue
		}
		if next.Timestamp > t {
			v.lookahead = next
			return current, nil
		}
		current = next
	}
}

func clampSourceTime(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}

func (v *VideoSource) close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache.purge()
	return v.iter.Close()
}
