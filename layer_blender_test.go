package compositor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestPool() *SourcePool {
	return newSourcePool(zerolog.Nop(), nil)
}

func solidImageSource(w, h int, r, g, b, a byte) *ImageSource {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return &ImageSource{frame: &DecodedFrame{Image: &RGBAImage{Width: w, Height: h, Pix: pix}}}
}

func TestLayerBlenderZOrderStable(t *testing.T) {
	pool := newTestPool()
	bottom := solidImageSource(4, 4, 255, 0, 0, 255)
	top := solidImageSource(4, 4, 0, 255, 0, 255)

	bottomID := pool.register(&poolEntry{kind: SourceImage, image: bottom})
	topID := pool.register(&poolEntry{kind: SourceImage, image: top})

	blender := newLayerBlender(pool, 4, 4, FitContain, nil)
	frame := CompositionFrame{
		Layers: []Layer{
			{SourceID: topID, ZIndex: 1, FitMode: FitFill},
			{SourceID: bottomID, ZIndex: 0, FitMode: FitFill},
		},
	}

	out, err := blender.Render(context.Background(), frame)
	if err != nil {
		t.Fatal(err)
	}
	if out.Pix[1] != 255 {
		t.Fatalf("expected top (green, higher z-index) layer to win, got pixel %v", out.Pix[:4])
	}
}

func TestLayerBlenderSkipsHiddenLayers(t *testing.T) {
	pool := newTestPool()
	src := solidImageSource(4, 4, 255, 0, 0, 255)
	id := pool.register(&poolEntry{kind: SourceImage, image: src})

	blender := newLayerBlender(pool, 4, 4, FitContain, nil)
	hidden := false
	frame := CompositionFrame{
		Layers: []Layer{{SourceID: id, FitMode: FitFill, Visible: &hidden}},
	}

	out, err := blender.Render(context.Background(), frame)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(out.Pix); i++ {
		if out.Pix[i] != 0 {
			t.Fatalf("hidden layer should leave the frame untouched, got non-zero at %d", i)
		}
	}
}

func TestLayerBlenderMissingSourceDoesNotAbort(t *testing.T) {
	pool := newTestPool()
	blender := newLayerBlender(pool, 4, 4, FitContain, nil)
	frame := CompositionFrame{
		Layers: []Layer{{SourceID: "missing", FitMode: FitFill}},
	}
	out, err := blender.Render(context.Background(), frame)
	if err != nil {
		t.Fatalf("a missing source should be skipped, not fail the whole render: %v", err)
	}
	if out == nil {
		t.Fatalf("expected a (blank) output frame")
	}
}
