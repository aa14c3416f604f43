package compositor

import "testing"

func newSolidRGBA(w, h int, r, g, b, a byte) *RGBAImage {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return &RGBAImage{Width: w, Height: h, Pix: pix}
}

func newBlankRGBA(w, h int) *RGBAImage {
	return &RGBAImage{Width: w, Height: h, Pix: make([]byte, w*h*4)}
}

func pixelAt(img *RGBAImage, x, y int) (r, g, b, a byte) {
	i := (y*img.Width + x) * 4
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]
}

// TestDrawTransformedScalesAroundAnchorNotTopLeft locks in spec.md §4.4's
// anchor-centered scaling: a box at (20,20,10,10) with a bottom-right anchor
// (1,1) scaled 2x must grow toward its top-left, landing at (10,10,20,20),
// not grow from its own top-left corner to (20,20,20,20).
func TestDrawTransformedScalesAroundAnchorNotTopLeft(t *testing.T) {
	src := newSolidRGBA(4, 4, 255, 0, 0, 255)
	dst := newBlankRGBA(40, 40)

	p := placement{
		X: 20, Y: 20, W: 10, H: 10,
		ScaleX: 2, ScaleY: 2,
		AnchorX: 1, AnchorY: 1,
		Opacity: 1,
	}
	drawTransformed(dst, src, p)

	if r, g, _, a := pixelAt(dst, 15, 15); a == 0 || r != 255 || g != 0 {
		t.Fatalf("expected red inside the anchor-correct rect [10,30)x[10,30) at (15,15), got r=%d g=%d a=%d", r, g, a)
	}
	if _, _, _, a := pixelAt(dst, 35, 35); a != 0 {
		t.Fatalf("expected transparent at (35,35): the old top-left-anchored bug would have painted here, the anchor-correct rect should not")
	}
	if _, _, _, a := pixelAt(dst, 5, 5); a != 0 {
		t.Fatalf("expected transparent outside the scaled rect at (5,5), got a=%d", a)
	}
}

func TestResolvePlacementDefaultsToUnitScale(t *testing.T) {
	p := resolvePlacement(Layer{}, 10, 10, 10, 10, FitFill)
	if p.ScaleX != 1 || p.ScaleY != 1 {
		t.Fatalf("expected default ScaleX/ScaleY of 1, got %v/%v", p.ScaleX, p.ScaleY)
	}
	if !isIdentityPlacement(p, 10, 10) {
		t.Fatalf("an untransformed same-size layer should be the identity fast path")
	}
}

func TestResolvePlacementScaleBreaksIdentityFastPath(t *testing.T) {
	transform := DefaultTransform()
	transform.ScaleX = 1.5
	layer := Layer{Transform: &transform}
	p := resolvePlacement(layer, 10, 10, 10, 10, FitFill)
	if isIdentityPlacement(p, 10, 10) {
		t.Fatalf("a scaled layer must not take the identity fast path")
	}
}
