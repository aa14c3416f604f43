package compositor

import (
	"context"
	"image"
	"image/color"
	"strings"
	"sync"

	"golang.design/x/clipboard"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextStroke outlines each glyph by drawing it offset in a ring around the
// fill color before the fill itself (spec.md §4.1 loadText "stroke").
type TextStroke struct {
	Color [4]byte
	Width int
}

// TextShadow drops a copy of the glyphs behind the fill, offset and
// optionally box-blurred (spec.md §4.1 loadText "shadow").
type TextShadow struct {
	Color             [4]byte
	OffsetX, OffsetY  int
	Blur              int
}

// TextOptions configures loadText and updateText (spec.md §3 Source kinds:
// "text"; §4.1 loadText(font, weight, size, color, stroke, shadow,
// background, line-wrap)).
type TextOptions struct {
	Content       string
	FromClipboard bool

	// Font names a family; the pack carries no TTF/sfnt face loader, so this
	// field has no effect on rendering — every face renders with
	// basicfont.Face7x13, scaled by Size.
	Font   string
	Weight string // "bold" double-strikes each glyph one pixel right
	Size   float64 // final raster scale relative to the native 13px line; 0 or 1 means unscaled

	Color      [4]byte // RGBA
	Background [4]byte // RGBA, alpha 0 for transparent
	Stroke     *TextStroke
	Shadow     *TextShadow
	MaxWidth   int // line-wrap width in pixels, 0 disables wrapping
}

// TextSource rasterizes a string to a static RGBA frame, the teacher's
// clipboard-paste plumbing (handleClipboardPaste in video_backend_ebiten.go)
// repurposed from "feed emulator keyboard bytes" to "read the one-shot
// initial text content" for a caption/overlay layer. update re-rasterizes in
// place for the updateText worker message.
type TextSource struct {
	mu    sync.RWMutex
	opts  TextOptions
	frame *DecodedFrame
}

var clipboardOnce sync.Once
var clipboardOK bool

func loadTextSource(opts TextOptions) (*TextSource, error) {
	content, err := resolveContent(opts)
	if err != nil {
		return nil, err
	}
	img := rasterizeText(content, opts)
	return &TextSource{opts: opts, frame: &DecodedFrame{Image: img}}, nil
}

func resolveContent(opts TextOptions) (string, error) {
	content := opts.Content
	if opts.FromClipboard {
		clipboardOnce.Do(func() {
			clipboardOK = clipboard.Init() == nil
		})
		if !clipboardOK {
			return "", newError(PermissionDenied, "loadText", "clipboard unavailable", nil)
		}
		content = string(clipboard.Read(clipboard.FmtText))
	}
	if strings.TrimSpace(content) == "" {
		return "", newError(MediaLoadFailed, "loadText", "empty text content", nil)
	}
	return content, nil
}

// update re-rasterizes this source with opts, the worker protocol's
// updateText handler (spec.md §4.5).
func (s *TextSource) update(opts TextOptions) error {
	content, err := resolveContent(opts)
	if err != nil {
		return err
	}
	img := rasterizeText(content, opts)
	s.mu.Lock()
	s.opts = opts
	s.frame = &DecodedFrame{Image: img}
	s.mu.Unlock()
	return nil
}

// rasterizeText draws, in order, the (optionally blurred) drop shadow, the
// stroke ring, then the fill — each pass its own font.Drawer sweep over the
// wrapped lines — before an optional final resize to Size (spec.md §4.1).
func rasterizeText(content string, opts TextOptions) *RGBAImage {
	face := basicfont.Face7x13
	lines := wrapText(content, face, opts.MaxWidth)

	lineHeight := face.Metrics().Height.Ceil()
	width := opts.MaxWidth
	if width <= 0 {
		width = longestLineWidth(lines, face)
	}
	bold := strings.EqualFold(opts.Weight, "bold")
	if bold {
		width++ // room for the one-pixel double-strike offset
	}
	height := lineHeight * len(lines)
	if height == 0 {
		height = lineHeight
	}
	if opts.Shadow != nil {
		width += abs(opts.Shadow.OffsetX) + opts.Shadow.Blur
		height += abs(opts.Shadow.OffsetY) + opts.Shadow.Blur
	}
	if opts.Stroke != nil {
		width += 2 * opts.Stroke.Width
		height += 2 * opts.Stroke.Width
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if opts.Background[3] != 0 {
		fillBackground(img, opts.Background)
	}

	baseX, baseY := 0, 0
	if opts.Stroke != nil {
		baseX, baseY = opts.Stroke.Width, opts.Stroke.Width
	}

	fg := opts.Color
	if fg == ([4]byte{}) {
		fg = [4]byte{255, 255, 255, 255}
	}

	if opts.Shadow != nil {
		drawLines(img, lines, face, lineHeight,
			baseX+opts.Shadow.OffsetX, baseY+opts.Shadow.OffsetY, opts.Shadow.Color, false)
		if opts.Shadow.Blur > 0 {
			boxBlur(img, opts.Shadow.Blur)
		}
	}
	if opts.Stroke != nil {
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}, {-1, -1}, {1, 1}, {-1, 1}, {1, -1}} {
			drawLines(img, lines, face, lineHeight,
				baseX+d[0]*opts.Stroke.Width, baseY+d[1]*opts.Stroke.Width, opts.Stroke.Color, false)
		}
	}
	drawLines(img, lines, face, lineHeight, baseX, baseY, fg, bold)

	raster := &RGBAImage{Width: width, Height: height, Pix: img.Pix}
	if opts.Size > 0 && opts.Size != 1 {
		raster = scaleRaster(raster, opts.Size)
	}
	return raster
}

func drawLines(img *image.RGBA, lines []string, face font.Face, lineHeight, offsetX, offsetY int, col [4]byte, bold bool) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(rgba8(col)),
		Face: face,
	}
	for i, line := range lines {
		y := offsetY + (i+1)*lineHeight - face.Metrics().Descent.Ceil()
		d.Dot = fixed.P(offsetX, y)
		d.DrawString(line)
		if bold {
			d.Dot = fixed.P(offsetX+1, y)
			d.DrawString(line)
		}
	}
}

// boxBlur approximates a shadow blur with a cheap separable box filter over
// the alpha channel; radius is in pixels.
func boxBlur(img *image.RGBA, radius int) {
	b := img.Bounds()
	src := make([]uint8, len(img.Pix))
	copy(src, img.Pix)
	at := func(buf []uint8, x, y int) uint8 {
		if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
			return 0
		}
		return buf[(y-b.Min.Y)*img.Stride+(x-b.Min.X)*4+3]
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var sum, n int
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					sum += int(at(src, x+dx, y+dy))
					n++
				}
			}
			img.Pix[(y-b.Min.Y)*img.Stride+(x-b.Min.X)*4+3] = uint8(sum / n)
		}
	}
}

func scaleRaster(r *RGBAImage, factor float64) *RGBAImage {
	w := int(float64(r.Width) * factor)
	h := int(float64(r.Height) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	src := rgbaToImage(r)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return &RGBAImage{Width: w, Height: h, Pix: dst.Pix}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func wrapText(content string, face font.Face, maxWidth int) []string {
	if maxWidth <= 0 {
		return strings.Split(content, "\n")
	}
	var out []string
	for _, para := range strings.Split(content, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if measureWidth(candidate, face) > maxWidth {
				out = append(out, line)
				line = w
				continue
			}
			line = candidate
		}
		out = append(out, line)
	}
	return out
}

func measureWidth(s string, face font.Face) int {
	adv := font.MeasureString(face, s)
	return adv.Ceil()
}

func longestLineWidth(lines []string, face font.Face) int {
	max := 0
	for _, l := range lines {
		if w := measureWidth(l, face); w > max {
			max = w
		}
	}
	if max == 0 {
		max = 1
	}
	return max
}

func fillBackground(img *image.RGBA, bg [4]byte) {
	col := rgba8(bg)
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			img.Set(x, y, col)
		}
	}
}

func rgba8(c [4]byte) color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

func (s *TextSource) getFrameAt(context.Context, float64) (*DecodedFrame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, nil
}

func (s *TextSource) Duration() float64 { return 0 }
func (s *TextSource) Dimensions() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame.Image.Width, s.frame.Image.Height
}
func (s *TextSource) close() error { return nil }
