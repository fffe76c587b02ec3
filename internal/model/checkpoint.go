package model

import (
	"encoding/gob"
	"fmt"
	"os"
)

const checkpointVersion = 1

// Param is one named tensor as stored in a checkpoint file.
type Param struct {
	Shape []int
	Data  []float32
}

type checkpointFile struct {
	Version int
	Params  map[string]Param
}

// SaveCheckpoint writes the parameter set to path. The set must be complete
// and correctly shaped; partial checkpoints are not representable.
func SaveCheckpoint(path string, params map[string]Param) error {
	if err := validateParams(params); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(checkpointFile{
		Version: checkpointVersion,
		Params:  params,
	}); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	return f.Close()
}

// LoadCheckpoint reads a checkpoint and validates that its parameter names
// and shapes exactly match what the network expects. Any mismatch, including
// an empty or truncated file, is an error.
func LoadCheckpoint(path string) (map[string]Param, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var ckpt checkpointFile
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if ckpt.Version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", ckpt.Version)
	}
	if err := validateParams(ckpt.Params); err != nil {
		return nil, err
	}

	return ckpt.Params, nil
}

func validateParams(params map[string]Param) error {
	for name, want := range ParamShapes {
		p, ok := params[name]
		if !ok {
			return fmt.Errorf("checkpoint missing parameter %q", name)
		}
		if !shapeEq(p.Shape, want) {
			return fmt.Errorf("parameter %q has shape %v, want %v", name, p.Shape, want)
		}
		if len(p.Data) != numElems(want) {
			return fmt.Errorf("parameter %q has %d values, want %d", name, len(p.Data), numElems(want))
		}
	}
	for name := range params {
		if _, ok := ParamShapes[name]; !ok {
			return fmt.Errorf("checkpoint has unknown parameter %q", name)
		}
	}
	return nil
}

func shapeEq(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func numElems(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
