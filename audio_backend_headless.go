//go:build headless

package compositor

import "sync/atomic"

// headlessSink is the //go:build headless counterpart of otoSink, pumped
// manually by tests rather than a real audio device callback.
type headlessSink struct {
	started atomic.Bool
	mixer   atomic.Pointer[func(int, float64) []float32]
	clock   *audioClock
}

func newAudioSinkForBuild(clock *audioClock) (audioSink, error) {
	return newHeadlessSink(clock)
}

func newHeadlessSink(clock *audioClock) (*headlessSink, error) {
	return &headlessSink{clock: clock}, nil
}

func (s *headlessSink) SetMixer(mixer func(frames int, clockSeconds float64) []float32) {
	s.mixer.Store(&mixer)
}

// Pump simulates the device pulling n frames, for use from tests.
func (s *headlessSink) Pump(frames int) []float32 {
	mixerPtr := s.mixer.Load()
	var out []float32
	if mixerPtr != nil {
		out = (*mixerPtr)(frames, s.clock.seconds())
	}
	s.clock.advance(frames)
	return out
}

func (s *headlessSink) Start()          { s.started.Store(true) }
func (s *headlessSink) Stop()           { s.started.Store(false) }
func (s *headlessSink) Close()          { s.started.Store(false) }
func (s *headlessSink) IsStarted() bool { return s.started.Load() }
