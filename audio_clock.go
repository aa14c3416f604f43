package compositor

import "sync/atomic"

// audioSink is the pull-model destination the Audio Scheduler mixes into,
// the Go shape of the spec's AudioContext.destination: the sink calls back
// for samples whenever its backend needs more, rather than being pushed to.
// Adapted from the teacher's OtoPlayer (oto.Player's io.Reader contract).
type audioSink interface {
	Start()
	Stop()
	Close()
	IsStarted() bool
	// SetMixer installs the callback invoked to fill each output buffer.
	// mixer receives the number of float32 frames requested and the sink's
	// current clock position in seconds, and returns exactly that many
	// interleaved samples (mono).
	SetMixer(mixer func(frames int, clockSeconds float64) []float32)
}

// audioClock is the monotonically advancing "have we played this many
// samples" counter the scheduler and sink share, replacing a wall-clock
// read with a sample-accurate one (spec.md §4.3: "the scheduler treats the
// AudioContext clock, not wall-clock time, as ground truth").
type audioClock struct {
	sampleRate     int
	samplesPlayed  atomic.Int64
}

func newAudioClock(sampleRate int) *audioClock {
	return &audioClock{sampleRate: sampleRate}
}

func (c *audioClock) advance(frames int) {
	c.samplesPlayed.Add(int64(frames))
}

func (c *audioClock) seconds() float64 {
	return float64(c.samplesPlayed.Load()) / float64(c.sampleRate)
}

func (c *audioClock) reset() {
	c.samplesPlayed.Store(0)
}
