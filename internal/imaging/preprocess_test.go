package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocessShapeInvariant(t *testing.T) {
	sizes := [][2]int{
		{224, 224},
		{320, 240},
		{240, 320},
		{1, 1},
		{50, 999},
		{999, 50},
	}
	for _, s := range sizes {
		data := encodePNG(t, solidImage(s[0], s[1], color.RGBA{R: 10, G: 20, B: 30, A: 255}))
		out, err := Preprocess(data)
		require.NoError(t, err, "size %dx%d", s[0], s[1])
		assert.Equal(t, []int{1, 3, TargetSize, TargetSize}, []int(out.Shape()), "size %dx%d", s[0], s[1])
	}
}

func TestPreprocessSolidColorChannelMeans(t *testing.T) {
	data := encodePNG(t, solidImage(224, 224, color.RGBA{R: 73, G: 109, B: 137, A: 255}))
	out, err := Preprocess(data)
	require.NoError(t, err)

	vals := out.Data().([]float32)
	plane := TargetSize * TargetSize
	require.Len(t, vals, 3*plane)

	for c := 0; c < 3; c++ {
		var sum float64
		for i := 0; i < plane; i++ {
			sum += float64(vals[c*plane+i])
		}
		mean := sum / float64(plane)
		assert.InDelta(t, 0, mean, 3.0, "channel %d mean", c)
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	data := encodePNG(t, solidImage(300, 200, color.RGBA{R: 200, G: 50, B: 120, A: 255}))

	a, err := Preprocess(data)
	require.NoError(t, err)
	b, err := Preprocess(data)
	require.NoError(t, err)

	assert.Equal(t, a.Data().([]float32), b.Data().([]float32))
}

func TestPreprocessGrayscaleSource(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 300, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}

	out, err := Preprocess(encodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, TargetSize, TargetSize}, []int(out.Shape()))
}

func TestPreprocessRejectsNonImage(t *testing.T) {
	_, err := Preprocess([]byte("this is plain text, not an image"))
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestPreprocessRejectsEmptyInput(t *testing.T) {
	_, err := Preprocess(nil)
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}
