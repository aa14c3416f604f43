package compositor

import "context"

// videoFrameIterator is the opaque media input library's video side
// (spec.md §1: "wraps an opaque media input library"). decode_astiav.go
// is the only implementation shipped in this module; tests substitute a
// synthetic iterator so the cache/cursor logic doesn't need real media
// files.
type videoFrameIterator interface {
	// Next decodes and returns the next frame in presentation order.
	// Returns io.EOF (wrapped) once the stream is exhausted.
	Next(ctx context.Context) (*DecodedFrame, error)
	// SeekTo restarts decoding at the nearest keyframe at or before t.
	SeekTo(ctx context.Context, t float64) error
	Duration() float64
	Dimensions() (width, height int)
	// FrameIntervalMillis is the probed average inter-frame gap, used to
	// size the frame cache's quantization bucket and pick its capacity tier.
	FrameIntervalMillis() int
	Close() error
}

// audioBufferIterator is the audio-decode counterpart, yielding fixed-size
// interleaved PCM buffers rather than frames.
type audioBufferIterator interface {
	Next(ctx context.Context) (*decodedAudioBuffer, error)
	SeekTo(ctx context.Context, t float64) error
	Duration() float64
	SampleRate() int
	Channels() int
	Close() error
}

// decodedAudioBuffer is one chunk of decoded, interleaved float32 PCM.
type decodedAudioBuffer struct {
	Samples   []float32
	Timestamp float64 // seconds, start of this buffer
	Frames    int     // per-channel sample count
}
