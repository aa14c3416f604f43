package compositor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// poolEntry is the union of the four source kinds a SourcePool can hold.
// Exactly one of the typed fields is non-nil, selected by Kind, mirroring
// spec.md §3's Source discriminated union.
type poolEntry struct {
	kind  SourceKind
	video *VideoSource
	image *ImageSource
	audio *AudioSource
	text  *TextSource
}

// SourcePool is C1: the registry of loaded sources a CompositionFrame's
// layers reference by SourceID (spec.md §4.2). Grounded on the teacher's
// VideoCompositor.sources roster, generalized from a fixed slice of
// VideoSource implementations to a keyed map over four source kinds.
type SourcePool struct {
	mu      sync.RWMutex
	entries map[SourceID]*poolEntry
	nextID  uint64
	log     zerolog.Logger
	m       *metrics
}

func newSourcePool(log zerolog.Logger, m *metrics) *SourcePool {
	return &SourcePool{entries: make(map[SourceID]*poolEntry), log: log, m: m}
}

func (p *SourcePool) newID() SourceID {
	p.nextID++
	return SourceID(itoa(p.nextID))
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// LoadVideo opens url via the astiav-backed decoder and registers it.
func (p *SourcePool) LoadVideo(ctx context.Context, url string) (SourceID, error) {
	iter, err := openVideoIterator(url)
	if err != nil {
		return "", err
	}
	vs, err := newVideoSource(iter, p.m)
	if err != nil {
		_ = iter.Close()
		return "", err
	}
	return p.register(&poolEntry{kind: SourceVideo, video: vs}), nil
}

// LoadAudio opens url's audio stream and registers it.
func (p *SourcePool) LoadAudio(ctx context.Context, url string) (SourceID, error) {
	iter, err := openAudioIterator(url)
	if err != nil {
		return "", err
	}
	return p.register(&poolEntry{kind: SourceAudio, audio: newAudioSource(iter)}), nil
}

// LoadImage decodes a static image file and registers it.
func (p *SourcePool) LoadImage(path string) (SourceID, error) {
	is, err := loadImageSource(path)
	if err != nil {
		return "", err
	}
	return p.register(&poolEntry{kind: SourceImage, image: is}), nil
}

// LoadText rasterizes text content (or the clipboard) and registers it.
func (p *SourcePool) LoadText(opts TextOptions) (SourceID, error) {
	ts, err := loadTextSource(opts)
	if err != nil {
		return "", err
	}
	return p.register(&poolEntry{kind: SourceText, text: ts}), nil
}

func (p *SourcePool) register(e *poolEntry) SourceID {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.newID()
	p.entries[id] = e
	p.log.Debug().Str("sourceId", string(id)).Str("kind", e.kind.String()).Msg("source registered")
	return id
}

// Unload removes and closes a source. Layers still referencing it will fail
// their next getFrameAt with TrackNotFound (spec.md §7).
func (p *SourcePool) Unload(id SourceID) error {
	p.mu.Lock()
	e, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	p.mu.Unlock()
	if !ok {
		return newError(TrackNotFound, "unload", "unknown source id", nil)
	}
	return closeEntry(e)
}

func closeEntry(e *poolEntry) error {
	switch e.kind {
	case SourceVideo:
		return e.video.close()
	case SourceAudio:
		return e.audio.close()
	case SourceImage:
		return e.image.close()
	case SourceText:
		return e.text.close()
	}
	return nil
}

func (p *SourcePool) lookup(id SourceID) (*poolEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[id]
	return e, ok
}

// getFrameAt dispatches to the looked-up source's kind-specific fetch,
// the single entry point LayerBlender calls per visible layer.
func (p *SourcePool) getFrameAt(ctx context.Context, id SourceID, t float64) (*DecodedFrame, error) {
	e, ok := p.lookup(id)
	if !ok {
		return nil, newError(TrackNotFound, "getFrameAt", "unknown source id", nil)
	}
	switch e.kind {
	case SourceVideo:
		return e.video.getFrameAt(ctx, t)
	case SourceImage:
		return e.image.getFrameAt(ctx, t)
	case SourceText:
		return e.text.getFrameAt(ctx, t)
	default:
		return nil, newError(MediaNotSupported, "getFrameAt", "source has no video frames", nil)
	}
}

// audioSourceAt returns the AudioSource for id, used by AudioScheduler.
func (p *SourcePool) audioSourceAt(id SourceID) (*AudioSource, error) {
	e, ok := p.lookup(id)
	if !ok {
		return nil, newError(TrackNotFound, "getAudioBufferAt", "unknown source id", nil)
	}
	if e.kind != SourceAudio {
		return nil, newError(MediaNotSupported, "getAudioBufferAt", "source has no audio", nil)
	}
	return e.audio, nil
}

// duration reports a source's total duration, or 0 for static sources.
func (p *SourcePool) duration(id SourceID) float64 {
	e, ok := p.lookup(id)
	if !ok {
		return 0
	}
	switch e.kind {
	case SourceVideo:
		return e.video.Duration()
	case SourceAudio:
		return e.audio.Duration()
	default:
		return 0
	}
}

// SourceInfo is a read-only snapshot of a registered source, returned by
// GetSource/GetAllSources (spec.md §4.1).
type SourceInfo struct {
	ID       SourceID
	Kind     SourceKind
	Width    int
	Height   int
	Duration float64
}

func sourceInfo(id SourceID, e *poolEntry) SourceInfo {
	info := SourceInfo{ID: id, Kind: e.kind}
	switch e.kind {
	case SourceVideo:
		info.Width, info.Height = e.video.Dimensions()
		info.Duration = e.video.Duration()
	case SourceImage:
		info.Width, info.Height = e.image.Dimensions()
	case SourceText:
		info.Width, info.Height = e.text.Dimensions()
	case SourceAudio:
		info.Duration = e.audio.Duration()
	}
	return info
}

// GetSource returns a snapshot of one registered source (spec.md §4.1).
func (p *SourcePool) GetSource(id SourceID) (SourceInfo, bool) {
	e, ok := p.lookup(id)
	if !ok {
		return SourceInfo{}, false
	}
	return sourceInfo(id, e), true
}

// GetAllSources returns a snapshot of every registered source (spec.md §4.1).
func (p *SourcePool) GetAllSources() []SourceInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]SourceInfo, 0, len(p.entries))
	for id, e := range p.entries {
		out = append(out, sourceInfo(id, e))
	}
	return out
}

// UpdateText mutates a loaded text source's rendered content in place
// (spec.md §4.1 updateText), re-rasterizing without changing its SourceID.
func (p *SourcePool) UpdateText(id SourceID, opts TextOptions) error {
	e, ok := p.lookup(id)
	if !ok {
		return newError(TrackNotFound, "updateText", "unknown source id", nil)
	}
	if e.kind != SourceText {
		return newError(MediaNotSupported, "updateText", "source is not text", nil)
	}
	return e.text.update(opts)
}

// Clear unloads and closes every registered source (spec.md §4.1), leaving
// the pool itself usable for subsequent Load calls.
func (p *SourcePool) Clear() error {
	return p.Close()
}

// Close tears down every registered source, used by Compositor.Dispose.
func (p *SourcePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for id, e := range p.entries {
		if err := closeEntry(e); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.entries, id)
	}
	return firstErr
}
