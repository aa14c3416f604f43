//go:build !headless

package compositor

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// otoSink implements audioSink on github.com/ebitengine/oto/v3, adapted
// from the teacher's OtoPlayer: the same pre-allocated sample buffer and
// atomic-pointer hot path, but pulling mixed frames from a scheduler-
// supplied mixer callback instead of a single SoundChip ring buffer.
type otoSink struct {
	ctx        *oto.Context
	player     *oto.Player
	mixer      atomic.Pointer[func(int, float64) []float32]
	clock      *audioClock
	sampleBuf  []float32
	started    bool
	mutex      sync.Mutex
}

func newAudioSinkForBuild(clock *audioClock) (audioSink, error) {
	return newOtoSink(clock)
}

func newOtoSink(clock *audioClock) (*otoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   clock.sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, newError(PlaybackError, "newOtoSink", "failed to open audio context", err)
	}
	<-ready

	s := &otoSink{ctx: ctx, clock: clock, sampleBuf: make([]float32, 4096)}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

func (s *otoSink) SetMixer(mixer func(frames int, clockSeconds float64) []float32) {
	s.mixer.Store(&mixer)
}

// Read implements io.Reader for oto.Player: pulled whenever the backend's
// ring buffer needs more samples.
func (s *otoSink) Read(p []byte) (int, error) {
	mixerPtr := s.mixer.Load()
	numSamples := len(p) / 4
	if mixerPtr == nil {
		for i := range p {
			p[i] = 0
		}
		s.clock.advance(numSamples)
		return len(p), nil
	}

	mixed := (*mixerPtr)(numSamples, s.clock.seconds())
	if len(s.sampleBuf) < len(mixed) {
		s.sampleBuf = make([]float32, len(mixed))
	}
	samples := s.sampleBuf[:numSamples]
	copy(samples, mixed)
	for i := len(mixed); i < numSamples; i++ {
		samples[i] = 0
	}

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:len(p)])
	s.clock.advance(numSamples)
	return len(p), nil
}

func (s *otoSink) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		s.player.Play()
		s.started = true
	}
}

func (s *otoSink) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		s.player.Pause()
		s.started = false
	}
}

func (s *otoSink) Close() {
	s.Stop()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player != nil {
		_ = s.player.Close()
		s.player = nil
	}
}

func (s *otoSink) IsStarted() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}
