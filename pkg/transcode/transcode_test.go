package transcode

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/mangavault/core/pkg/remoteclient"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 128})
			}
		}
	}
	return img
}

func encodeJPEGFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, checkerboard(8, 8), &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestTranscodeJPEGToWebpProducesDecodableWebp(t *testing.T) {
	codec := New()
	src := encodeJPEGFixture(t)

	out, err := codec.Transcode(src, remoteclient.ImageJpeg, remoteclient.ImageWebp)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	decoded, err := webp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
	assert.Equal(t, 8, decoded.Bounds().Dy())
}

func TestTranscodeWebpToJPEGProducesDecodableJPEG(t *testing.T) {
	codec := New()
	src := encodeJPEGFixture(t)

	webpBytes, err := codec.Transcode(src, remoteclient.ImageJpeg, remoteclient.ImageWebp)
	require.NoError(t, err)

	jpegBytes, err := codec.Transcode(webpBytes, remoteclient.ImageWebp, remoteclient.ImageJpeg)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
	assert.Equal(t, 8, decoded.Bounds().Dy())
}

func TestTranscodeRejectsUnsupportedSourceFormat(t *testing.T) {
	codec := New()
	_, err := codec.Transcode([]byte("whatever"), remoteclient.ImageFormat("png"), remoteclient.ImageWebp)
	assert.Error(t, err)
}

func TestTranscodeRejectsUnsupportedTargetFormat(t *testing.T) {
	codec := New()
	src := encodeJPEGFixture(t)
	_, err := codec.Transcode(src, remoteclient.ImageJpeg, remoteclient.ImageFormat("png"))
	assert.Error(t, err)
}

func TestToOpaqueRGBACompositesTransparentPixelsOntoWhite(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 0, G: 0, B: 0, A: 0})

	out := toOpaqueRGBA(img)
	r, g, b, a := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)
}
