package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// placement is the resolved screen-space box (and opacity/rotation/scale) a
// layer's source image should be drawn at, after fit-mode sizing and the
// layer's explicit Transform have both been applied (spec.md §3 Transform).
// W/H are the fitted box size *before* ScaleX/ScaleY are applied, matching
// spec.md §4.4's "effective size" (dw, dh) that scale(scaleX,scaleY) then
// acts on around the anchor.
type placement struct {
	X, Y, W, H     float64
	ScaleX, ScaleY float64
	Rotation       float64
	Opacity        float64
	AnchorX        float64
	AnchorY        float64
}

// resolvePlacement merges a layer's transform over the fit-computed default
// box. A nil transform (or nil Width/Height) defers to the fit computation;
// an explicit transform field overrides it, per spec.md §3's "consolidated
// policy" for partially-specified transforms. fitMode is the already-resolved
// effective fit (layer.fitMode, or the compositor default when it's 'auto').
func resolvePlacement(l Layer, srcW, srcH, boxW, boxH float64, fitMode FitMode) placement {
	t := DefaultTransform()
	if l.Transform != nil {
		t = *l.Transform
	}

	fx, fy, fw, fh := fitRect(srcW, srcH, boxW, boxH, fitMode)

	p := placement{
		X: fx, Y: fy, W: fw, H: fh,
		ScaleX:   1,
		ScaleY:   1,
		Rotation: t.Rotation,
		Opacity:  clamp01(t.Opacity),
		AnchorX:  t.AnchorX,
		AnchorY:  t.AnchorY,
	}

	if t.Width != nil {
		p.W = *t.Width
	}
	if t.Height != nil {
		p.H = *t.Height
	}
	p.X += t.X
	p.Y += t.Y
	if t.ScaleX != 0 {
		p.ScaleX = t.ScaleX
	}
	if t.ScaleY != 0 {
		p.ScaleY = t.ScaleY
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// isIdentityPlacement reports whether p needs only a straight copy-blend
// (no scaling, rotation, or opacity), the fast path the teacher's
// blendFrame1to1 handles with raw uint32 writes.
func isIdentityPlacement(p placement, srcW, srcH int) bool {
	return p.Rotation == 0 && p.Opacity >= 1 &&
		p.ScaleX == 1 && p.ScaleY == 1 &&
		int(p.W) == srcW && int(p.H) == srcH &&
		p.X == math.Trunc(p.X) && p.Y == math.Trunc(p.Y)
}

// drawTransformed is the slow path spec.md §4.4 "Transform application"
// describes: translate to the anchor point, rotate, scale, then draw the box
// at (−dw·anchorX,−dh·anchorY,dw,dh) — so a layer scales and rotates around
// its anchor, never its top-left corner.
func drawTransformed(dst *RGBAImage, src *RGBAImage, p placement) {
	if p.Rotation == 0 {
		drawScaledAroundAnchor(dst, src, p)
		return
	}
	drawRotatedWithOpacity(dst, src, p)
}

// drawScaledAroundAnchor handles rotation==0: the anchor screen point
// (p.X+p.W·AnchorX, p.Y+p.H·AnchorY) stays fixed while the box grows or
// shrinks around it, then x/image/draw resamples into the resulting
// axis-aligned rect.
func drawScaledAroundAnchor(dst *RGBAImage, src *RGBAImage, p placement) {
	dstImg := rgbaToImage(dst)
	srcImg := rgbaToImage(src)

	scaledW := p.W * p.ScaleX
	scaledH := p.H * p.ScaleY
	ox := p.X + p.W*p.AnchorX*(1-p.ScaleX)
	oy := p.Y + p.H*p.AnchorY*(1-p.ScaleY)
	r := image.Rect(int(ox), int(oy), int(ox+scaledW), int(oy+scaledH))
	drawScaledWithOpacity(dstImg, r, srcImg, p.Opacity)
}

func drawScaledWithOpacity(dst *image.RGBA, r image.Rectangle, src *image.RGBA, opacity float64) {
	if opacity >= 1 {
		draw.CatmullRom.Scale(dst, r, src, src.Bounds(), draw.Over, nil)
		return
	}
	scaled := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.CatmullRom.Scale(scaled, image.Rect(0, 0, r.Dx(), r.Dy()), src, src.Bounds(), draw.Src, nil)
	applyOpacityInPlace(scaled, opacity)
	draw.Draw(dst, r, scaled, image.Point{}, draw.Over)
}

// drawRotatedWithOpacity handles rotation != 0 (with or without scale != 1)
// by inverse-mapping each destination pixel back through rotation and scale
// to a source sample, keeping the anchor point fixed in both.
func drawRotatedWithOpacity(dst *RGBAImage, src *RGBAImage, p placement) {
	dstImg := rgbaToImage(dst)
	srcImg := rgbaToImage(src)

	theta := p.Rotation * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	cx := p.X + p.W*p.AnchorX
	cy := p.Y + p.H*p.AnchorY
	sb := srcImg.Bounds()

	scaledW := p.W * p.ScaleX
	scaledH := p.H * p.ScaleY
	// Expand the scan region to the rotated, scaled bounding box so corners
	// aren't clipped.
	diag := math.Hypot(scaledW, scaledH)
	minX := int(cx - diag)
	minY := int(cy - diag)
	maxX := int(cx + diag)
	maxY := int(cy + diag)

	db := dstImg.Bounds()
	for y := max(minY, db.Min.Y); y < min(maxY, db.Max.Y); y++ {
		for x := max(minX, db.Min.X); x < min(maxX, db.Max.X); x++ {
			// Inverse-rotate, then inverse-scale, the destination pixel back
			// into the unrotated, unscaled box.
			dx := float64(x) - cx
			dy := float64(y) - cy
			rx := dx*cos + dy*sin
			ry := -dx*sin + dy*cos
			lx := rx / p.ScaleX
			ly := ry / p.ScaleY
			ux := lx + p.W*p.AnchorX
			uy := ly + p.H*p.AnchorY
			if ux < 0 || uy < 0 || ux >= p.W || uy >= p.H {
				continue
			}
			sx := sb.Min.X + int(ux/p.W*float64(sb.Dx()))
			sy := sb.Min.Y + int(uy/p.H*float64(sb.Dy()))
			sc := srcImg.RGBAAt(sx, sy)
			if sc.A == 0 {
				continue
			}
			if p.Opacity < 1 {
				sc.A = uint8(float64(sc.A) * p.Opacity)
			}
			blendOver(dstImg, x, y, sc)
		}
	}
}

func applyOpacityInPlace(img *image.RGBA, opacity float64) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(float64(img.Pix[i]) * opacity)
	}
}

func blendOver(dst *image.RGBA, x, y int, src color.RGBA) {
	if src.A == 255 {
		dst.SetRGBA(x, y, src)
		return
	}
	bg := dst.RGBAAt(x, y)
	a := float64(src.A) / 255
	out := color.RGBA{
		R: uint8(float64(src.R)*a + float64(bg.R)*(1-a)),
		G: uint8(float64(src.G)*a + float64(bg.G)*(1-a)),
		B: uint8(float64(src.B)*a + float64(bg.B)*(1-a)),
		A: uint8(math.Max(float64(src.A), float64(bg.A))),
	}
	dst.SetRGBA(x, y, out)
}

func rgbaToImage(r *RGBAImage) *image.RGBA {
	return &image.RGBA{
		Pix:    r.Pix,
		Stride: r.Width * 4,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}
