package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/nfnt/resize"
	"gorgonia.org/tensor"
)

// TargetSize is the side length of the square tensor fed to the network.
const TargetSize = 224

var (
	normMean = [3]float32{0.485, 0.456, 0.406}
	normStd  = [3]float32{0.229, 0.224, 0.225}
)

// DecodeError marks input bytes that could not be decoded as an image. It is
// a per-request failure, not a service fault.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Preprocess converts raw image bytes into a 1x3x224x224 float32 tensor:
// decode, scale the shorter side to 224, center-crop the 224x224 square,
// then normalize each channel with the ImageNet mean and std-dev.
func Preprocess(data []byte) (*tensor.Dense, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("empty %dx%d image", w, h)}
	}

	var rw, rh int
	if w <= h {
		rw = TargetSize
		rh = int(math.Ceil(float64(h) * float64(TargetSize) / float64(w)))
	} else {
		rh = TargetSize
		rw = int(math.Ceil(float64(w) * float64(TargetSize) / float64(h)))
	}
	resized := resize.Resize(uint(rw), uint(rh), img, resize.Lanczos3)

	x0 := (rw - TargetSize) / 2
	y0 := (rh - TargetSize) / 2

	plane := TargetSize * TargetSize
	backing := make([]float32, 3*plane)

	for y := 0; y < TargetSize; y++ {
		for x := 0; x < TargetSize; x++ {
			// RGBA() collapses alpha and grayscale sources to RGB for us.
			r, g, b, _ := resized.At(x0+x, y0+y).RGBA()

			idx := y*TargetSize + x
			backing[idx] = (float32(r)/65535.0 - normMean[0]) / normStd[0]
			backing[plane+idx] = (float32(g)/65535.0 - normMean[1]) / normStd[1]
			backing[2*plane+idx] = (float32(b)/65535.0 - normMean[2]) / normStd[2]
		}
	}

	return tensor.New(
		tensor.WithShape(1, 3, TargetSize, TargetSize),
		tensor.WithBacking(backing),
	), nil
}
