package compositor

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

// singleBufferIterator serves exactly one decodedAudioBuffer and then EOF,
// used to pin down spec.md §8 scenario 4's exact scheduling numbers without
// depending on fakeAudioIterator's fixed buffer-boundary timestamps.
type singleBufferIterator struct {
	buf        *decodedAudioBuffer
	sampleRate int
	served     bool
}

func (s *singleBufferIterator) Next(ctx context.Context) (*decodedAudioBuffer, error) {
	if s.served {
		return nil, io.EOF
	}
	s.served = true
	return s.buf, nil
}

func (s *singleBufferIterator) SeekTo(ctx context.Context, t float64) error {
	s.served = false
	return nil
}

func (s *singleBufferIterator) Duration() float64 { return 10 }
func (s *singleBufferIterator) SampleRate() int    { return s.sampleRate }
func (s *singleBufferIterator) Channels() int      { return 1 }
func (s *singleBufferIterator) Close() error       { return nil }

// newScenario4Scheduler builds an AudioScheduler backed by a single registered
// audio source whose only buffer is {timestamp: 5.120, duration: 0.020},
// matching spec.md §8 scenario 4 literally (sampleRate chosen as 1000Hz so
// a 0.020s buffer is exactly 20 frames).
func newScenario4Scheduler(t *testing.T) (*AudioScheduler, *scheduledLayer, SourceID) {
	t.Helper()
	const sampleRate = 1000
	frames := int(0.020 * sampleRate)
	samples := make([]float32, frames)
	iter := &singleBufferIterator{
		buf:        &decodedAudioBuffer{Samples: samples, Timestamp: 5.120, Frames: frames},
		sampleRate: sampleRate,
	}
	pool := newSourcePool(zerolog.Nop(), nil)
	id := pool.register(&poolEntry{kind: SourceAudio, audio: newAudioSource(iter)})

	s := &AudioScheduler{pool: pool, log: zerolog.Nop(), m: newMetrics()}
	sl := &scheduledLayer{currentSourceTime: 5.000}
	return s, sl, id
}

// TestAudioSchedulerAnchorsScheduledContextTime reproduces spec.md §8
// scenario 4: audioClock.now=1.000, play(fromTime=5.000), buffer
// {timestamp:5.120, duration:0.020} must be scheduled at context time 1.120
// — i.e. not yet due when pulled at clockSeconds=1.000.
func TestAudioSchedulerAnchorsScheduledContextTime(t *testing.T) {
	s, sl, id := newScenario4Scheduler(t)
	ctx := context.Background()

	samples, err := s.fillBuffer(ctx, id, sl, 1.000, 0)
	if err != nil {
		t.Fatalf("fillBuffer: %v", err)
	}
	if samples != nil {
		t.Fatalf("a buffer scheduled in the future (1.120 > 1.000) should yield silence, got %d samples", len(samples))
	}
	if sl.lookahead == nil {
		t.Fatalf("the not-yet-due buffer should be held as lookahead for the next pull")
	}
}

// TestAudioSchedulerPartialSkipOnSmallLateness reproduces spec.md §8
// scenario 4's second case: arrival at context time 1.125 schedules
// immediately with a 0.005s internal offset.
func TestAudioSchedulerPartialSkipOnSmallLateness(t *testing.T) {
	s, sl, id := newScenario4Scheduler(t)
	ctx := context.Background()
	if _, err := s.fillBuffer(ctx, id, sl, 1.000, 0); err != nil {
		t.Fatalf("priming fillBuffer: %v", err)
	}

	samples, err := s.fillBuffer(ctx, id, sl, 1.125, 0)
	if err != nil {
		t.Fatalf("fillBuffer: %v", err)
	}
	wantSkip := int(0.005 * 1000)
	if got := 20 - len(samples); got != wantSkip {
		t.Fatalf("expected a %d-sample partial skip (0.005s @ 1000Hz), got %d", wantSkip, got)
	}
}

// TestAudioSchedulerDropsBufferLateByMoreThanItsDuration reproduces spec.md
// §8 scenario 4's third case: arrival at context time 1.200 is more than
// one buffer-length (0.020s) late and must be dropped.
func TestAudioSchedulerDropsBufferLateByMoreThanItsDuration(t *testing.T) {
	s, sl, id := newScenario4Scheduler(t)
	ctx := context.Background()
	if _, err := s.fillBuffer(ctx, id, sl, 1.000, 0); err != nil {
		t.Fatalf("priming fillBuffer: %v", err)
	}

	before := testutil.ToFloat64(s.m.audioBufDropped)
	if _, err := s.fillBuffer(ctx, id, sl, 1.200, 0); err == nil {
		t.Fatalf("expected an error: the dropped buffer's only successor is EOF")
	}
	if after := testutil.ToFloat64(s.m.audioBufDropped); after != before+1 {
		t.Fatalf("expected the dropped-buffer counter to increment, before=%v after=%v", before, after)
	}
}

func TestGainNodeIsPerceptualSquare(t *testing.T) {
	if g := gainNode(0.5); math.Abs(g-0.25) > 1e-9 {
		t.Fatalf("gainNode(0.5) = %v, want 0.25", g)
	}
	if g := gainNode(1); g != 1 {
		t.Fatalf("gainNode(1) = %v, want 1", g)
	}
	if g := gainNode(-1); g != 0 {
		t.Fatalf("gainNode should clamp negative volume to 0, got %v", g)
	}
}

func TestPanNodeCenterIsEqualPower(t *testing.T) {
	l, r := panNode(0)
	if math.Abs(l-r) > 1e-9 {
		t.Fatalf("center pan should be equal power, got l=%v r=%v", l, r)
	}
	if math.Abs(l*l+r*r-1) > 1e-6 {
		t.Fatalf("equal-power pan should satisfy l^2+r^2=1, got %v", l*l+r*r)
	}
}

func TestPanNodeHardLeftSilencesRight(t *testing.T) {
	l, r := panNode(-1)
	if r > 1e-9 {
		t.Fatalf("hard left pan should silence the right channel, got r=%v", r)
	}
	if l < 0.99 {
		t.Fatalf("hard left pan should leave left near full, got l=%v", l)
	}
}

func TestAudioGraphMixSumsAndClamps(t *testing.T) {
	g := newAudioGraph(1)
	loud := make([]float32, 4)
	for i := range loud {
		loud[i] = 1
	}
	out := g.mix(4, []mixInput{
		{samples: loud, volume: 1, pan: 0},
		{samples: loud, volume: 1, pan: 0},
	})
	for _, v := range out {
		if v > 1 || v < -1 {
			t.Fatalf("mixed output should be clamped to [-1,1], got %v", v)
		}
	}
}

func TestAudioGraphMixSkipsMutedLayers(t *testing.T) {
	g := newAudioGraph(1)
	loud := make([]float32, 4)
	for i := range loud {
		loud[i] = 1
	}
	out := g.mix(4, []mixInput{{samples: loud, volume: 1, pan: 0, muted: true}})
	for _, v := range out {
		if v != 0 {
			t.Fatalf("muted layer should not contribute, got %v", v)
		}
	}
}

func TestAudioSourceNextBufferSequential(t *testing.T) {
	sampleRate := 8000
	bufSeconds := 0.1
	iter := newFakeAudioIterator(10, bufSeconds, sampleRate)
	src := newAudioSource(iter)
	ctx := context.Background()

	first, err := src.nextBufferAfter(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first.Timestamp != 0 {
		t.Fatalf("expected first buffer at t=0, got %v", first.Timestamp)
	}

	second, err := src.nextBufferAfter(ctx, bufSeconds)
	if err != nil {
		t.Fatal(err)
	}
	if second.Timestamp != bufSeconds {
		t.Fatalf("expected second buffer at t=%v, got %v", bufSeconds, second.Timestamp)
	}
}

func TestAudioSourceReseeksOnDrift(t *testing.T) {
	sampleRate := 8000
	bufSeconds := 0.1
	iter := newFakeAudioIterator(100, bufSeconds, sampleRate)
	src := newAudioSource(iter)
	ctx := context.Background()

	if _, err := src.nextBufferAfter(ctx, 0); err != nil {
		t.Fatal(err)
	}
	buf, err := src.nextBufferAfter(ctx, 5.0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(buf.Timestamp-5.0) > bufSeconds {
		t.Fatalf("a jump beyond audioDriftThreshold should reseek near the requested time, got %v", buf.Timestamp)
	}
}
