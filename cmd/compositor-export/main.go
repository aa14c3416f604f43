// Command compositor-export loads a single video or image source, composes
// one frame at a given time, and writes it to a PNG file. It exists to
// exercise the library's exportFrame path from the command line, the same
// role the teacher's cmd/ie32to64 plays for its own core: a thin stdlib
// flag-parsing wrapper around the library, not a library of its own.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	compositor "github.com/sorenhald/compositor"
)

func main() {
	source := flag.String("source", "", "path or URL of the video/image to export a frame from")
	t := flag.Float64("time", 0, "source time in seconds to export")
	out := flag.String("out", "frame.png", "output PNG path")
	isImage := flag.Bool("image", false, "treat -source as a static image rather than video")
	flag.Parse()

	if *source == "" {
		fmt.Fprintln(os.Stderr, "compositor-export: -source is required")
		os.Exit(2)
	}

	c, err := compositor.New(compositor.WithDimensions(1280, 720))
	if err != nil {
		fmt.Fprintf(os.Stderr, "compositor-export: %v\n", err)
		os.Exit(1)
	}
	defer c.Dispose()

	ctx := context.Background()
	var id compositor.SourceID
	if *isImage {
		id, err = c.LoadImage(*source)
	} else {
		id, err = c.LoadVideo(ctx, *source)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "compositor-export: load failed: %v\n", err)
		os.Exit(1)
	}

	c.SetComposition(func(srcTime float64) compositor.CompositionFrame {
		return compositor.CompositionFrame{
			Time: srcTime,
			Layers: []compositor.Layer{
				{SourceID: id, FitMode: compositor.FitContain},
			},
		}
	}, 0)

	rgba, err := c.ExportFrame(ctx, *t)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compositor-export: export failed: %v\n", err)
		os.Exit(1)
	}

	if err := writePNG(*out, rgba); err != nil {
		fmt.Fprintf(os.Stderr, "compositor-export: write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}

func writePNG(path string, rgba *compositor.RGBAImage) error {
	img := &image.RGBA{
		Pix:    rgba.Pix,
		Stride: rgba.Width * 4,
		Rect:   image.Rect(0, 0, rgba.Width, rgba.Height),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
