// Package transcode converts chapter page images between WebP and JPEG,
// the only two encodings the remote origin serves (spec §4.1). Decoding
// dispatches on the source format the caller passes in; the bytes
// themselves are not sniffed. JPEG pages are composited onto an opaque RGB
// buffer before encoding (JPEG carries no alpha channel) and WebP pages are
// converted to a straight RGBA buffer, matching spec §4.1's "RGB8 for
// JPEG and RGBA8 for WebP" requirement.
package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/kolesa-team/go-webp/encoder"
	webpenc "github.com/kolesa-team/go-webp/webp"

	"github.com/mangavault/core/pkg/remoteclient"
)

const jpegQuality = 90

// webpLossyQuality matches the preset used for re-encoding manga pages:
// legible line art and text without the file-size cost of a high-fidelity
// photo preset.
const webpLossyQuality = 85

// Codec implements remoteclient.Transcoder.
type Codec struct{}

// New builds a Codec. It carries no state; a shared package-level instance
// would work just as well, but a constructor keeps the dependency explicit
// at call sites.
func New() *Codec {
	return &Codec{}
}

// Transcode decodes data as from and re-encodes it as to. If from == to it
// still round-trips through decode/encode, so callers needing a verbatim
// pass-through (the common case) should check that upstream, the way
// remoteclient.GetImage already does before calling in.
func (c *Codec) Transcode(data []byte, from, to remoteclient.ImageFormat) ([]byte, error) {
	img, err := decode(data, from)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", from, err)
	}
	encoded, err := encode(img, to)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", to, err)
	}
	return encoded, nil
}

func decode(data []byte, format remoteclient.ImageFormat) (image.Image, error) {
	reader := bytes.NewReader(data)
	switch format {
	case remoteclient.ImageJpeg:
		return jpeg.Decode(reader)
	case remoteclient.ImageWebp:
		return webp.Decode(reader)
	default:
		return nil, fmt.Errorf("unsupported source format %q", format)
	}
}

func encode(img image.Image, format remoteclient.ImageFormat) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case remoteclient.ImageJpeg:
		rgb := toOpaqueRGBA(img)
		if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, err
		}
	case remoteclient.ImageWebp:
		rgba := toRGBA(img)
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetText, webpLossyQuality)
		if err != nil {
			return nil, fmt.Errorf("build webp encoder options: %w", err)
		}
		if err := webpenc.Encode(&buf, rgba, options); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported target format %q", format)
	}
	return buf.Bytes(), nil
}

// toRGBA converts img to a straight (non-premultiplied-source) RGBA
// buffer, the shape the WebP encoder expects.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
	return dst
}

// toOpaqueRGBA composites img onto an opaque white background and returns
// an RGBA buffer with alpha fully discarded, since JPEG has no alpha
// channel: compositing onto white rather than just dropping the alpha
// channel avoids dark fringing around transparent edges.
func toOpaqueRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}
