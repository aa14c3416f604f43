package compositor

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// AudioScheduler is C4: holds a one-buffer look-ahead per active audio
// layer scheduled against the audio clock (not wall-clock), mixes the
// layers through the audioGraph, and feeds the result to an audioSink
// (spec.md §4.3). The "playback epoch" is a monotonic counter bumped on
// every play, pause, seek and dispose. Nothing in the scheduler reads it:
// mixing runs from the sink's pull callback, there is no background
// scheduling goroutine for it to cancel, and a layer re-anchors only when
// setLayers sees its source time jump.
type AudioScheduler struct {
	pool  *SourcePool
	graph *audioGraph
	clock *audioClock
	sink  audioSink
	log   zerolog.Logger
	m     *metrics

	epoch atomic.Uint64

	mu     sync.Mutex
	active map[SourceID]*scheduledLayer
}

// scheduledLayer is spec.md §4.3's ActiveAudioSource: it anchors a playback
// epoch the first time it's filled (or re-anchors on a seek), then derives
// every subsequent buffer's scheduled context time from that fixed anchor,
// never from the buffer's arrival time.
type scheduledLayer struct {
	layer AudioLayer

	lookahead *decodedAudioBuffer

	started                  bool
	startSourceTime          float64
	iteratorStartContextTime float64
	currentSourceTime        float64
}

func newAudioScheduler(pool *SourcePool, sink audioSink, clock *audioClock, masterGain float64, log zerolog.Logger, m *metrics) *AudioScheduler {
	s := &AudioScheduler{
		pool:   pool,
		graph:  newAudioGraph(masterGain),
		clock:  clock,
		sink:   sink,
		log:    log,
		m:      m,
		active: make(map[SourceID]*scheduledLayer),
	}
	sink.SetMixer(s.mix)
	return s
}

// setLayers replaces the active audio layer set for the current composition
// tick (spec.md §4.3 processAudioLayers), called once per RenderLoop tick.
// mediaTime is the composition's current time, the same default a layer's
// source time falls back to in LayerBlender.Render when Layer.SourceTime is
// nil, so video and audio agree on "where" an unpinned layer is playing from.
func (s *AudioScheduler) setLayers(layers []AudioLayer, mediaTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[SourceID]*scheduledLayer, len(layers))
	for _, l := range layers {
		sourceTime := mediaTime
		if l.SourceTime != nil {
			sourceTime = *l.SourceTime
		}
		if existing, ok := s.active[l.SourceID]; ok {
			if existing.started && math.Abs(sourceTime-existing.currentSourceTime) > 0.5 {
				// A jump larger than drift tolerance is a seek, not normal
				// playback advance: restart the iterator at the new time.
				existing.started = false
				existing.lookahead = nil
			}
			existing.layer = l
			existing.currentSourceTime = sourceTime
			next[l.SourceID] = existing
			continue
		}
		next[l.SourceID] = &scheduledLayer{layer: l, currentSourceTime: sourceTime}
	}
	s.active = next
}

// bumpEpoch advances the playback epoch and returns the new value; no
// scheduling path checks it.
func (s *AudioScheduler) bumpEpoch() uint64 {
	return s.epoch.Add(1)
}

// mix is the audioSink's pull callback: produce `frames` mono samples
// starting at clockSeconds from each active layer's due buffer (at most one
// buffer per layer per pull).
func (s *AudioScheduler) mix(frames int, clockSeconds float64) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputs := make([]mixInput, 0, len(s.active))
	ctx := context.Background()
	for id, sl := range s.active {
		buf, err := s.fillBuffer(ctx, id, sl, clockSeconds, frames)
		if err != nil {
			s.log.Debug().Err(err).Str("sourceId", string(id)).Msg("audio buffer unavailable")
			continue
		}
		if buf == nil {
			continue
		}
		inputs = append(inputs, mixInput{
			samples: buf,
			volume:  sl.layer.Volume,
			pan:     sl.layer.Pan,
			muted:   sl.layer.Muted,
		})
	}
	return s.graph.mix(frames, inputs)
}

// fillBuffer implements spec.md §4.3's scheduling invariant:
// scheduledContextTime = iteratorStartContextTime + (bufferTimestamp −
// startSourceTime). The anchor (startSourceTime, iteratorStartContextTime)
// is fixed the moment a layer starts or re-anchors after a seek, so every
// later buffer's scheduled time is computed relative to that fixed epoch,
// not to its own arrival time.
func (s *AudioScheduler) fillBuffer(ctx context.Context, id SourceID, sl *scheduledLayer, clockSeconds float64, frames int) ([]float32, error) {
	src, err := s.pool.audioSourceAt(id)
	if err != nil {
		return nil, err
	}

	if !sl.started {
		sl.startSourceTime = sl.currentSourceTime
		sl.iteratorStartContextTime = clockSeconds
		sl.started = true
		sl.lookahead = nil
	}

	buf := sl.lookahead
	sl.lookahead = nil
	if buf == nil {
		buf, err = src.nextBufferAfter(ctx, sl.startSourceTime)
		if err != nil {
			return nil, err
		}
	}

	bufferSeconds := float64(buf.Frames) / float64(src.SampleRate())
	offset := buf.Timestamp - sl.startSourceTime
	scheduledContextTime := sl.iteratorStartContextTime + offset

	if scheduledContextTime >= clockSeconds {
		// Not due yet: hold it for the next pull and emit silence now.
		sl.lookahead = buf
		return nil, nil
	}

	lateness := clockSeconds - scheduledContextTime
	if lateness >= bufferSeconds {
		// Arrived more than one buffer late: drop and fetch forward.
		if s.m != nil {
			s.m.audioBufDropped.Inc()
		}
		return s.fillBuffer(ctx, id, sl, clockSeconds, frames)
	}

	// Partial-skip: schedule immediately, offsetting into the buffer by how
	// late it is.
	if s.m != nil {
		s.m.audioBufLate.Inc()
	}
	skip := int(math.Round(lateness * float64(src.SampleRate())))
	if skip < len(buf.Samples) {
		return buf.Samples[skip:], nil
	}
	return nil, nil
}

// SetMasterVolume/SetMasterMuted implement the façade's setVolume/setMuted
// (spec.md §4.6), applied at the audioGraph's destination stage.
func (s *AudioScheduler) SetMasterVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.setMasterVolume(v)
}

func (s *AudioScheduler) SetMasterMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.setMasterMuted(muted)
}

func (s *AudioScheduler) close() {
	s.clock.reset()
	s.sink.Close()
}
