package compositor

import "time"

// SourceKind identifies which of the four source variants a Source is.
type SourceKind int

const (
	SourceVideo SourceKind = iota
	SourceImage
	SourceAudio
	SourceText
)

func (k SourceKind) String() string {
	switch k {
	case SourceVideo:
		return "video"
	case SourceImage:
		return "image"
	case SourceAudio:
		return "audio"
	case SourceText:
		return "text"
	default:
		return "unknown"
	}
}

// SourceID uniquely identifies a loaded Source within a Source Pool.
type SourceID string

// DecodedFrame is a single decoded video frame: tightly-packed RGBA pixels
// plus the timestamp/duration window it is valid for.
type DecodedFrame struct {
	Image     *RGBAImage
	Timestamp float64 // seconds
	Duration  float64 // seconds; 0 for sources without per-frame duration
}

// RGBAImage is the pixel payload shared by video frames, decoded images, and
// rasterized text. Straight (non-premultiplied) alpha, row-major, 4 bytes/px.
type RGBAImage struct {
	Width  int
	Height int
	Pix    []byte
}

// FitMode is the policy mapping a source's intrinsic aspect ratio onto the
// render surface (spec.md GLOSSARY "Fit mode").
type FitMode int

const (
	FitAuto FitMode = iota
	FitFill
	FitCover
	FitContain
)

// Transform carries the optional per-layer position/scale/rotation fields
// from spec.md §3. Pointer-typed fields distinguish "unset" (use the fitted
// default) from an explicit zero value.
type Transform struct {
	X, Y          float64
	Width, Height *float64
	Rotation      float64 // degrees
	ScaleX        float64
	ScaleY        float64
	Opacity       float64
	AnchorX       float64
	AnchorY       float64
}

// DefaultTransform returns the spec.md §3 defaults: position 0, rotation 0,
// scale 1, opacity 1, anchor (0.5, 0.5), size deferred to the fit computation.
func DefaultTransform() Transform {
	return Transform{
		ScaleX:  1,
		ScaleY:  1,
		Opacity: 1,
		AnchorX: 0.5,
		AnchorY: 0.5,
	}
}

// Layer is one element of a CompositionFrame (spec.md §3).
type Layer struct {
	SourceID   SourceID
	SourceTime *float64
	Transform  *Transform
	FitMode    FitMode
	Visible    *bool // nil == true
	ZIndex     int
}

func (l Layer) isVisible() bool {
	return l.Visible == nil || *l.Visible
}

// AudioLayer is the audio counterpart of Layer (spec.md §3).
type AudioLayer struct {
	SourceID   SourceID
	SourceTime *float64
	Volume     float64 // [0,1]
	Pan        float64 // [-1,1]
	Muted      bool
}

// CompositionFrame is the per-tick immutable description of what to draw and
// play, produced by the client's getComposition callback.
type CompositionFrame struct {
	Time   float64
	Layers []Layer
	Audio  []AudioLayer
}

// LoopState enumerates the render loop's state machine (spec.md §4.4).
type LoopState int

const (
	StateIdle LoopState = iota
	StateConfigured
	StatePlaying
	StatePaused
	StateSeeking
	StateEnded
	StateDisposed
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfigured:
		return "Configured"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateSeeking:
		return "Seeking"
	case StateEnded:
		return "Ended"
	case StateDisposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// CompositorState is the public, polled snapshot of the render loop
// (spec.md §3).
type CompositorState struct {
	Playing     bool
	CurrentTime float64
	Duration    float64
	Seeking     bool
}

// reseekThreshold is the time gap beyond which a video decoder restarts from
// the new position rather than advancing sequentially (spec.md GLOSSARY).
const reseekThreshold = 0.75 * float64(time.Second) / float64(time.Second)

// audioDriftThreshold is the per-frame source-time divergence that triggers
// an audio iterator restart (spec.md §4.3 processAudioLayers).
const audioDriftThreshold = 0.5

// defaultFrameIntervalMillis is the fallback decode cadence (30fps) used when
// packet-rate probing fails or is inconclusive (spec.md §4.1).
const defaultFrameIntervalMillis = 1000 / 30
