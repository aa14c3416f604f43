package compositor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/asticode/go-astiav"
)

// astiavVideoIterator implements videoFrameIterator against a real media
// file/stream via FFmpeg bindings, grounded on e1z0-QAnotherRTSP's
// openAndDecode/bgraScaler: demux with astiav.FormatContext, decode with the
// stream's native codec, and always swscale to a tightly-packed RGBA buffer
// so nothing downstream touches YUV planes.
type astiavVideoIterator struct {
	mu sync.Mutex

	fc       *astiav.FormatContext
	dec      *astiav.CodecContext
	streamIx int
	timeBase astiav.Rational

	scaler    *astiav.SoftwareScaleContext
	scaledDst *astiav.Frame
	rawFrame  *astiav.Frame
	pkt       *astiav.Packet

	width, height int
	duration      float64
	frameInterval int
}

func openVideoIterator(url string) (videoFrameIterator, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, newError(MediaLoadFailed, "loadVideo", "failed to allocate format context", nil)
	}
	if err := fc.OpenInput(url, nil, nil); err != nil {
		fc.Free()
		return nil, newError(MediaLoadFailed, "loadVideo", fmt.Sprintf("open %q", url), err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.Free()
		return nil, newError(MediaLoadFailed, "loadVideo", "probe stream info", err)
	}

	streamIx := -1
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			streamIx = i
			break
		}
	}
	if streamIx < 0 {
		fc.Free()
		return nil, newError(MediaNotSupported, "loadVideo", "no video stream in input", nil)
	}

	stream := fc.Streams()[streamIx]
	params := stream.CodecParameters()
	decoder := astiav.FindDecoder(params.CodecID())
	if decoder == nil {
		fc.Free()
		return nil, newError(MediaNotSupported, "loadVideo", "no decoder for codec", nil)
	}
	ctx := astiav.AllocCodecContext(decoder)
	if ctx == nil {
		fc.Free()
		return nil, newError(DecodeError, "loadVideo", "allocate codec context", nil)
	}
	if err := params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		fc.Free()
		return nil, newError(DecodeError, "loadVideo", "copy codec parameters", err)
	}
	if err := ctx.Open(decoder, nil); err != nil {
		ctx.Free()
		fc.Free()
		return nil, newError(DecodeError, "loadVideo", "open codec", err)
	}

	rate := stream.AvgFrameRate()
	interval := defaultFrameIntervalMillis
	if rate.Num() > 0 && rate.Den() > 0 {
		interval = int(1000 * int64(rate.Den()) / int64(rate.Num()))
	}

	v := &astiavVideoIterator{
		fc:            fc,
		dec:           ctx,
		streamIx:      streamIx,
		timeBase:      stream.TimeBase(),
		rawFrame:      astiav.AllocFrame(),
		pkt:           astiav.AllocPacket(),
		width:         ctx.Width(),
		height:        ctx.Height(),
		duration:      float64(stream.Duration()) * stream.TimeBase().Float64(),
		frameInterval: interval,
	}
	return v, nil
}

func (v *astiavVideoIterator) ensureScaler(src *astiav.Frame) error {
	if v.scaler != nil {
		return nil
	}
	ssc, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		v.width, v.height, astiav.PixelFormatRgba,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return err
	}
	dst := astiav.AllocFrame()
	dst.SetWidth(v.width)
	dst.SetHeight(v.height)
	dst.SetPixelFormat(astiav.PixelFormatRgba)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return err
	}
	v.scaler, v.scaledDst = ssc, dst
	return nil
}

func (v *astiavVideoIterator) Next(ctx context.Context) (*DecodedFrame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := v.fc.ReadFrame(v.pkt)
		if err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return nil, newError(DecodeError, "getFrameAt", "end of stream", io.EOF)
			}
			return nil, newError(DecodeError, "getFrameAt", "demux", err)
		}
		if v.pkt.StreamIndex() != v.streamIx {
			v.pkt.Unref()
			continue
		}
		if err := v.dec.SendPacket(v.pkt); err != nil {
			v.pkt.Unref()
			return nil, newError(DecodeError, "getFrameAt", "send packet", err)
		}
		v.pkt.Unref()

		if err := v.dec.ReceiveFrame(v.rawFrame); err != nil {
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			return nil, newError(DecodeError, "getFrameAt", "receive frame", err)
		}

		if err := v.ensureScaler(v.rawFrame); err != nil {
			return nil, newError(DecodeError, "getFrameAt", "create scaler", err)
		}
		if err := v.scaler.ScaleFrame(v.rawFrame, v.scaledDst); err != nil {
			return nil, newError(DecodeError, "getFrameAt", "scale frame", err)
		}
		n, err := v.scaledDst.ImageBufferSize(1)
		if err != nil {
			return nil, newError(DecodeError, "getFrameAt", "image buffer size", err)
		}
		out := make([]byte, n)
		if _, err := v.scaledDst.ImageCopyToBuffer(out, 1); err != nil {
			return nil, newError(DecodeError, "getFrameAt", "copy image", err)
		}

		ts := float64(v.rawFrame.Pts()) * v.timeBase.Float64()
		v.rawFrame.Unref()
		return &DecodedFrame{
			Image:     &RGBAImage{Width: v.width, Height: v.height, Pix: out},
			Timestamp: ts,
			Duration:  float64(v.frameInterval) / 1000,
		}, nil
	}
}

func (v *astiavVideoIterator) SeekTo(ctx context.Context, t float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	ts := int64(t / v.timeBase.Float64())
	if err := v.fc.SeekFrame(v.streamIx, ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return newError(DecodeError, "seek", "seek frame", err)
	}
	v.dec.FlushBuffers()
	return nil
}

func (v *astiavVideoIterator) Duration() float64              { return v.duration }
func (v *astiavVideoIterator) Dimensions() (int, int)         { return v.width, v.height }
func (v *astiavVideoIterator) FrameIntervalMillis() int       { return v.frameInterval }

func (v *astiavVideoIterator) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.scaledDst != nil {
		v.scaledDst.Free()
	}
	if v.scaler != nil {
		v.scaler.Free()
	}
	v.rawFrame.Free()
	v.pkt.Free()
	v.dec.Free()
	v.fc.Free()
	return nil
}

// astiavAudioIterator mirrors astiavVideoIterator for the audio stream of
// the same container, decoding into interleaved float32 PCM buffers via
// astiav's resampler rather than swscale.
type astiavAudioIterator struct {
	mu sync.Mutex

	fc         *astiav.FormatContext
	dec        *astiav.CodecContext
	streamIx   int
	timeBase   astiav.Rational
	resampler  *astiav.SoftwareResampleContext
	rawFrame   *astiav.Frame
	pkt        *astiav.Packet
	sampleRate int
	channels   int
	duration   float64
}

func openAudioIterator(url string) (audioBufferIterator, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, newError(MediaLoadFailed, "loadAudio", "failed to allocate format context", nil)
	}
	if err := fc.OpenInput(url, nil, nil); err != nil {
		fc.Free()
		return nil, newError(MediaLoadFailed, "loadAudio", fmt.Sprintf("open %q", url), err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.Free()
		return nil, newError(MediaLoadFailed, "loadAudio", "probe stream info", err)
	}

	streamIx := -1
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			streamIx = i
			break
		}
	}
	if streamIx < 0 {
		fc.Free()
		return nil, newError(MediaNotSupported, "loadAudio", "no audio stream in input", nil)
	}

	stream := fc.Streams()[streamIx]
	params := stream.CodecParameters()
	decoder := astiav.FindDecoder(params.CodecID())
	if decoder == nil {
		fc.Free()
		return nil, newError(MediaNotSupported, "loadAudio", "no decoder for codec", nil)
	}
	ctx := astiav.AllocCodecContext(decoder)
	if err := params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		fc.Free()
		return nil, newError(DecodeError, "loadAudio", "copy codec parameters", err)
	}
	if err := ctx.Open(decoder, nil); err != nil {
		ctx.Free()
		fc.Free()
		return nil, newError(DecodeError, "loadAudio", "open codec", err)
	}

	a := &astiavAudioIterator{
		fc:         fc,
		dec:        ctx,
		streamIx:   streamIx,
		timeBase:   stream.TimeBase(),
		rawFrame:   astiav.AllocFrame(),
		pkt:        astiav.AllocPacket(),
		sampleRate: ctx.SampleRate(),
		channels:   ctx.Channels(),
		duration:   float64(stream.Duration()) * stream.TimeBase().Float64(),
	}
	return a, nil
}

func (a *astiavAudioIterator) Next(ctx context.Context) (*decodedAudioBuffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := a.fc.ReadFrame(a.pkt)
		if err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return nil, newError(DecodeError, "getAudioBufferAt", "end of stream", io.EOF)
			}
			return nil, newError(DecodeError, "getAudioBufferAt", "demux", err)
		}
		if a.pkt.StreamIndex() != a.streamIx {
			a.pkt.Unref()
			continue
		}
		if err := a.dec.SendPacket(a.pkt); err != nil {
			a.pkt.Unref()
			return nil, newError(DecodeError, "getAudioBufferAt", "send packet", err)
		}
		a.pkt.Unref()

		if err := a.dec.ReceiveFrame(a.rawFrame); err != nil {
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			return nil, newError(DecodeError, "getAudioBufferAt", "receive frame", err)
		}

		frames := a.rawFrame.NbSamples()
		samples := make([]float32, frames*a.channels)
		if err := a.rawFrame.Data().SetFloat32(samples, 0); err != nil {
			return nil, newError(DecodeError, "getAudioBufferAt", "extract samples", err)
		}
		ts := float64(a.rawFrame.Pts()) * a.timeBase.Float64()
		a.rawFrame.Unref()
		return &decodedAudioBuffer{Samples: samples, Timestamp: ts, Frames: frames}, nil
	}
}

func (a *astiavAudioIterator) SeekTo(ctx context.Context, t float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := int64(t / a.timeBase.Float64())
	if err := a.fc.SeekFrame(a.streamIx, ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return newError(DecodeError, "seek", "seek frame", err)
	}
	a.dec.FlushBuffers()
	return nil
}

func (a *astiavAudioIterator) Duration() float64  { return a.duration }
func (a *astiavAudioIterator) SampleRate() int     { return a.sampleRate }
func (a *astiavAudioIterator) Channels() int       { return a.channels }

func (a *astiavAudioIterator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rawFrame.Free()
	a.pkt.Free()
	a.dec.Free()
	a.fc.Free()
	return nil
}
