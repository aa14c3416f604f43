package compositor

import (
	"context"
	"errors"
	"io"
	"sync"
)

// AudioSource is the audio counterpart of VideoSource: a decode cursor over
// an audio stream, feeding the Audio Scheduler's look-ahead buffer queue
// rather than a per-tick frame request (spec.md §4.3).
type AudioSource struct {
	mu sync.Mutex

	iter       audioBufferIterator
	cursorTime float64
	lookahead  *decodedAudioBuffer
	ended      bool
	duration   float64
}

func newAudioSource(iter audioBufferIterator) *AudioSource {
	return &AudioSource{iter: iter, duration: iter.Duration()}
}

func (a *AudioSource) Duration() float64  { return a.duration }
func (a *AudioSource) SampleRate() int    { return a.iter.SampleRate() }
func (a *AudioSource) Channels() int      { return a.iter.Channels() }

// nextBufferAfter drains decode forward from the current cursor, restarting
// the iterator at t when t lies more than audioDriftThreshold before or
// after the cursor. Unlike VideoSource.getFrameAt, a backward step within
// that threshold does not restart it.
func (a *AudioSource) nextBufferAfter(ctx context.Context, t float64) (*decodedAudioBuffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	gap := t - a.cursorTime
	if gap < -audioDriftThreshold || gap > audioDriftThreshold {
		if err := a.iter.SeekTo(ctx, t); err != nil {
			return nil, newError(DecodeError, "getAudioBufferAt", "seek", err)
		}
		a.lookahead = nil
		a.ended = false
		a.cursorTime = t
	}

	if a.ended {
		return nil, newError(PlaybackError, "getAudioBufferAt", "source ended", io.EOF)
	}

	var buf *decodedAudioBuffer
	if a.lookahead != nil {
		buf, a.lookahead = a.lookahead, nil
	} else {
		next, err := a.iter.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.ended = true
				return nil, newError(PlaybackError, "getAudioBufferAt", "source ended", io.EOF)
			}
			return nil, newError(DecodeError, "getAudioBufferAt", "decode", err)
		}
		buf = next
	}
	a.cursorTime = buf.Timestamp
	return buf, nil
}

func (a *AudioSource) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iter.Close()
}
