package compositor

import (
	"context"
	"io"
)

// fakeVideoIterator is a synthetic videoFrameIterator for tests: it yields
// frames at a fixed interval with a monotonically increasing byte tag so
// tests can tell which decoded frame they received without real media.
type fakeVideoIterator struct {
	interval   float64 // seconds
	count      int
	cursor     int
	width      int
	height     int
	seekCalls  int
	nextCalls  int
}

func newFakeVideoIterator(count int, interval float64) *fakeVideoIterator {
	return &fakeVideoIterator{interval: interval, count: count, width: 4, height: 4}
}

func (f *fakeVideoIterator) Next(ctx context.Context) (*DecodedFrame, error) {
	f.nextCalls++
	if f.cursor >= f.count {
		return nil, io.EOF
	}
	i := f.cursor
	f.cursor++
	pix := make([]byte, f.width*f.height*4)
	for p := 0; p < len(pix); p += 4 {
		pix[p] = byte(i)
		pix[p+3] = 0xFF
	}
	return &DecodedFrame{
		Image:     &RGBAImage{Width: f.width, Height: f.height, Pix: pix},
		Timestamp: float64(i) * f.interval,
		Duration:  f.interval,
	}, nil
}

func (f *fakeVideoIterator) SeekTo(ctx context.Context, t float64) error {
	f.seekCalls++
	f.cursor = int(t / f.interval)
	if f.cursor >= f.count {
		// Seeking at or past the end lands on the last frame, the one at or
		// before t, as videoFrameIterator.SeekTo promises.
		f.cursor = f.count - 1
	}
	if f.cursor < 0 {
		f.cursor = 0
	}
	return nil
}

func (f *fakeVideoIterator) Duration() float64        { return float64(f.count) * f.interval }
func (f *fakeVideoIterator) Dimensions() (int, int)    { return f.width, f.height }
func (f *fakeVideoIterator) FrameIntervalMillis() int  { return int(f.interval * 1000) }
func (f *fakeVideoIterator) Close() error              { return nil }

// fakeAudioIterator is the audio analog, yielding fixed-size buffers.
type fakeAudioIterator struct {
	bufSeconds float64
	sampleRate int
	count      int
	cursor     int
}

func newFakeAudioIterator(count int, bufSeconds float64, sampleRate int) *fakeAudioIterator {
	return &fakeAudioIterator{bufSeconds: bufSeconds, sampleRate: sampleRate, count: count}
}

func (a *fakeAudioIterator) Next(ctx context.Context) (*decodedAudioBuffer, error) {
	if a.cursor >= a.count {
		return nil, io.EOF
	}
	i := a.cursor
	a.cursor++
	frames := int(a.bufSeconds * float64(a.sampleRate))
	samples := make([]float32, frames)
	for s := range samples {
		samples[s] = 0.5
	}
	return &decodedAudioBuffer{Samples: samples, Timestamp: float64(i) * a.bufSeconds, Frames: frames}, nil
}

func (a *fakeAudioIterator) SeekTo(ctx context.Context, t float64) error {
	a.cursor = int(t / a.bufSeconds)
	if a.cursor < 0 {
		a.cursor = 0
	}
	return nil
}

func (a *fakeAudioIterator) Duration() float64 { return float64(a.count) * a.bufSeconds }
func (a *fakeAudioIterator) SampleRate() int    { return a.sampleRate }
func (a *fakeAudioIterator) Channels() int      { return 1 }
func (a *fakeAudioIterator) Close() error       { return nil }
