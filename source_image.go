package compositor

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// ImageSource is a static-frame source: every getFrameAt call returns the
// same decoded RGBA buffer regardless of sourceTime (spec.md §3 Source kinds).
type ImageSource struct {
	frame *DecodedFrame
}

func loadImageSource(path string) (*ImageSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(MediaLoadFailed, "loadImage", "read file", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError(MediaNotSupported, "loadImage", "decode image", err)
	}
	rgba := toRGBAImage(img)
	return &ImageSource{frame: &DecodedFrame{Image: rgba, Timestamp: 0, Duration: 0}}, nil
}

func (s *ImageSource) getFrameAt(context.Context, float64) (*DecodedFrame, error) {
	return s.frame, nil
}

func (s *ImageSource) Duration() float64     { return 0 }
func (s *ImageSource) Dimensions() (int, int) { return s.frame.Image.Width, s.frame.Image.Height }
func (s *ImageSource) close() error          { return nil }

func toRGBAImage(img image.Image) *RGBAImage {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return &RGBAImage{Width: b.Dx(), Height: b.Dy(), Pix: dst.Pix}
}
