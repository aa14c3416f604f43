package compositor

// MessageKind enumerates the Request/Response variants the worker protocol
// carries (spec.md §4.5: init, loadSource, loadImage, loadAudio, loadText,
// updateText, unloadSource, render, clear, resize, exportFrame, dispose).
// The Go mapping of a JS Worker.postMessage boundary is a typed channel pair
// rather than structured-clone JSON, so Request and Response are plain
// structs, not wire-serialized envelopes. loadSource covers both loadVideo
// and loadAudio, distinguished by Kind at the call site (MsgLoadVideo vs
// MsgLoadAudio) since both are "load a streamed, time-addressable source".
type MessageKind int

const (
	MsgInit MessageKind = iota
	MsgLoadVideo
	MsgLoadAudio
	MsgLoadImage
	MsgLoadText
	MsgUpdateText
	MsgUnload
	MsgGetFrameAt
	MsgRender
	MsgClear
	MsgResize
	MsgExportFrame
	MsgDispose
)

// Request is sent to the WorkerHost goroutine through WorkerHost.send.
type Request struct {
	ID        uint64
	Kind      MessageKind
	SourceID  SourceID
	URL       string
	ImagePath string
	TextOpts  TextOptions
	Time      float64
	Frame     CompositionFrame
	Width     int
	Height    int
}

// Response is the matching reply, correlated back to its Request by ID.
type Response struct {
	ID       uint64
	SourceID SourceID
	Frame    *DecodedFrame
	Exported []byte
	Err      error
}
