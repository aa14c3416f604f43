package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	path := filepath.Join(dir, "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestWorkerHost(t *testing.T) *WorkerHost {
	t.Helper()
	pool := newSourcePool(zerolog.Nop(), nil)
	blender := newLayerBlender(pool, 4, 4, FitContain, nil)
	surface, err := newEbitenSurface(4, 4)
	if err != nil {
		t.Fatalf("newEbitenSurface: %v", err)
	}
	return newWorkerHost(pool, blender, surface, zerolog.Nop(), nil)
}

func TestWorkerHostUnknownSourceIDReturnsError(t *testing.T) {
	host := newTestWorkerHost(t)
	defer host.close()

	resp := host.send(Request{ID: 1, Kind: MsgGetFrameAt, SourceID: "does-not-exist", Time: 0})
	if resp.Err == nil {
		t.Fatalf("expected an error for an unknown source id")
	}
	if KindOf(resp.Err) != TrackNotFound {
		t.Fatalf("expected TrackNotFound, got %v", KindOf(resp.Err))
	}
}

// TestWorkerHostRenderUnknownSourceThenSucceeds reproduces spec.md §8
// scenario 6: a render call against a composition referencing an unloaded
// source id fails fast with "Unknown source: <id>"; after loading that id,
// the same render succeeds.
func TestWorkerHostRenderUnknownSourceThenSucceeds(t *testing.T) {
	host := newTestWorkerHost(t)
	defer host.close()

	frame := CompositionFrame{Layers: []Layer{{SourceID: "missing"}}}
	resp := host.send(Request{ID: 1, Kind: MsgRender, Frame: frame})
	if resp.Err == nil {
		t.Fatalf("expected an error for a composition referencing an unknown source")
	}
	if KindOf(resp.Err) != TrackNotFound {
		t.Fatalf("expected TrackNotFound, got %v", KindOf(resp.Err))
	}

	path := writeTestPNG(t, t.TempDir())
	loadResp := host.send(Request{ID: 2, Kind: MsgLoadImage, ImagePath: path})
	if loadResp.Err != nil {
		t.Fatalf("load failed: %v", loadResp.Err)
	}

	frame = CompositionFrame{Layers: []Layer{{SourceID: loadResp.SourceID}}}
	renderResp := host.send(Request{ID: 3, Kind: MsgRender, Frame: frame})
	if renderResp.Err != nil {
		t.Fatalf("expected render to succeed once the source is loaded: %v", renderResp.Err)
	}
}

func TestWorkerHostExportFramePNG(t *testing.T) {
	host := newTestWorkerHost(t)
	defer host.close()

	path := writeTestPNG(t, t.TempDir())
	loadResp := host.send(Request{ID: 1, Kind: MsgLoadImage, ImagePath: path})
	if loadResp.Err != nil {
		t.Fatalf("load failed: %v", loadResp.Err)
	}

	frame := CompositionFrame{Layers: []Layer{{SourceID: loadResp.SourceID}}}
	resp := host.send(Request{ID: 2, Kind: MsgExportFrame, Frame: frame})
	if resp.Err != nil {
		t.Fatalf("exportFrame failed: %v", resp.Err)
	}
	if len(resp.Exported) == 0 {
		t.Fatalf("expected non-empty PNG bytes")
	}
	if _, err := png.Decode(bytes.NewReader(resp.Exported)); err != nil {
		t.Fatalf("exported bytes did not decode as PNG: %v", err)
	}
}

func TestWorkerHostLoadThenGetFrameRoundTrip(t *testing.T) {
	host := newTestWorkerHost(t)
	defer host.close()

	path := writeTestPNG(t, t.TempDir())

	loadResp := host.send(Request{ID: 1, Kind: MsgLoadImage, ImagePath: path})
	if loadResp.Err != nil {
		t.Fatalf("load failed: %v", loadResp.Err)
	}
	if loadResp.SourceID == "" {
		t.Fatalf("expected a non-empty source id")
	}

	frameResp := host.send(Request{ID: 2, Kind: MsgGetFrameAt, SourceID: loadResp.SourceID, Time: 0})
	if frameResp.Err != nil {
		t.Fatalf("getFrameAt failed: %v", frameResp.Err)
	}
	if frameResp.Frame == nil || frameResp.Frame.Image == nil {
		t.Fatalf("expected a decoded frame")
	}
	if frameResp.Frame.Image.Width != 2 || frameResp.Frame.Image.Height != 2 {
		t.Fatalf("unexpected frame dimensions: %dx%d", frameResp.Frame.Image.Width, frameResp.Frame.Image.Height)
	}
}
