// ckptinit writes a randomly initialized checkpoint with the exact parameter
// set the network expects. Useful for local development and smoke testing
// before a trained checkpoint is available; the resulting model predicts
// noise, but it loads and runs.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"catdog-api/internal/model"
)

func main() {
	out := flag.String("out", "artifacts/cnn_model.ckpt", "checkpoint output path")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	params := make(map[string]model.Param, len(model.ParamShapes))
	for name, shape := range model.ParamShapes {
		params[name] = initParam(name, shape, rng)
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create %s: %v", dir, err)
		}
	}
	if err := model.SaveCheckpoint(*out, params); err != nil {
		log.Fatalf("write checkpoint: %v", err)
	}

	log.Printf("wrote %d parameters to %s", len(params), *out)
}

// initParam applies He initialization to weights, identity to normalization
// statistics, and zeros to biases.
func initParam(name string, shape []int, rng *rand.Rand) model.Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)

	switch {
	case strings.HasSuffix(name, ".bn.gamma"), strings.HasSuffix(name, ".bn.var"):
		for i := range data {
			data[i] = 1
		}
	case strings.HasSuffix(name, ".bn.beta"), strings.HasSuffix(name, ".bn.mean"),
		strings.HasSuffix(name, ".bias"):
		// zeros
	default:
		fanIn := shape[0] // fc weights are (in, out)
		if len(shape) == 4 {
			fanIn = n / shape[0] // conv weights are (out, in, kh, kw)
		}
		std := math.Sqrt(2 / float64(fanIn))
		for i := range data {
			data[i] = float32(rng.NormFloat64() * std)
		}
	}

	return model.Param{Shape: append([]int(nil), shape...), Data: data}
}
