package model

import (
	"fmt"
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// NumClasses is the size of the logit vector the network produces.
	NumClasses = 2

	bnEpsilon   = 1e-5
	dropoutRate = 0.5
)

// ClassNames maps logit index to label.
var ClassNames = [NumClasses]string{"cat", "dog"}

// ParamShapes is the complete parameter set a checkpoint must provide.
// Convolutions carry no bias; the channel normalization that follows each
// one absorbs any constant offset. Fully-connected weights are stored
// (in, out).
var ParamShapes = map[string][]int{
	"layer1.conv.weight": {16, 3, 3, 3},
	"layer1.bn.gamma":    {16},
	"layer1.bn.beta":     {16},
	"layer1.bn.mean":     {16},
	"layer1.bn.var":      {16},

	"layer2.conv.weight": {32, 16, 3, 3},
	"layer2.bn.gamma":    {32},
	"layer2.bn.beta":     {32},
	"layer2.bn.mean":     {32},
	"layer2.bn.var":      {32},

	"layer3.conv.weight": {64, 32, 3, 3},
	"layer3.bn.gamma":    {64},
	"layer3.bn.beta":     {64},
	"layer3.bn.mean":     {64},
	"layer3.bn.var":      {64},

	"fc1.weight": {64, 10},
	"fc1.bias":   {10},
	"fc2.weight": {10, 2},
	"fc2.bias":   {2},
}

type convStage struct {
	weight  *tensor.Dense
	bnScale *tensor.Dense // (1,C,1,1)
	bnShift *tensor.Dense // (1,C,1,1)
	pool    bool
}

// Network is the fixed cat/dog topology: three conv stages (3x3 kernel,
// stride 2, pad 1, normalization, ReLU, with 2x2 max-pool after the first
// two), global average pool to 64, then fc 64->10 (ReLU, dropout while
// training) and fc 10->2. It outputs raw logits; softmax is the caller's
// concern. Parameters are immutable once built, so a Network is safe for
// concurrent Forward calls.
type Network struct {
	stages [3]convStage

	fc1w *tensor.Dense // (64,10)
	fc1b *tensor.Dense // (1,10)
	fc2w *tensor.Dense // (10,2)
	fc2b *tensor.Dense // (1,2)

	training bool
}

// NewNetwork builds a network from a parameter set, validating names and
// shapes first. The frozen normalization statistics fold into a per-channel
// scale/shift pair here, so eval-mode normalization is two broadcast ops.
func NewNetwork(params map[string]Param) (*Network, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	n := &Network{}
	channels := [3]int{16, 32, 64}

	for i := range n.stages {
		prefix := fmt.Sprintf("layer%d", i+1)
		c := channels[i]

		w := params[prefix+".conv.weight"]
		n.stages[i].weight = denseOf(w.Shape, w.Data)

		scale, shift := foldNorm(
			params[prefix+".bn.gamma"].Data,
			params[prefix+".bn.beta"].Data,
			params[prefix+".bn.mean"].Data,
			params[prefix+".bn.var"].Data,
		)
		n.stages[i].bnScale = denseOf([]int{1, c, 1, 1}, scale)
		n.stages[i].bnShift = denseOf([]int{1, c, 1, 1}, shift)
		n.stages[i].pool = i < 2
	}

	n.fc1w = denseOf([]int{64, 10}, params["fc1.weight"].Data)
	n.fc1b = denseOf([]int{1, 10}, params["fc1.bias"].Data)
	n.fc2w = denseOf([]int{10, 2}, params["fc2.weight"].Data)
	n.fc2b = denseOf([]int{1, 2}, params["fc2.bias"].Data)

	return n, nil
}

// SetTraining toggles training mode, which enables dropout. The inference
// path always runs with training off.
func (n *Network) SetTraining(on bool) { n.training = on }

func (n *Network) Training() bool { return n.training }

// Forward runs one 1x3x224x224 input through the network and returns the two
// raw logits. Each call builds its own expression graph over the shared
// read-only parameters, so concurrent calls do not contend.
func (n *Network) Forward(input *tensor.Dense) ([]float32, error) {
	g := gorgonia.NewGraph()
	x := gorgonia.NodeFromAny(g, input, gorgonia.WithName("input"))

	var err error
	for i := range n.stages {
		st := &n.stages[i]

		w := gorgonia.NodeFromAny(g, st.weight, gorgonia.WithName(fmt.Sprintf("conv%d_w", i+1)))
		if x, err = gorgonia.Conv2d(x, w, tensor.Shape{3, 3}, []int{1, 1}, []int{2, 2}, []int{1, 1}); err != nil {
			return nil, fmt.Errorf("layer%d conv: %w", i+1, err)
		}

		scale := gorgonia.NodeFromAny(g, st.bnScale, gorgonia.WithName(fmt.Sprintf("bn%d_scale", i+1)))
		if x, err = gorgonia.BroadcastHadamardProd(x, scale, nil, []byte{2, 3}); err != nil {
			return nil, fmt.Errorf("layer%d norm scale: %w", i+1, err)
		}
		shift := gorgonia.NodeFromAny(g, st.bnShift, gorgonia.WithName(fmt.Sprintf("bn%d_shift", i+1)))
		if x, err = gorgonia.BroadcastAdd(x, shift, nil, []byte{2, 3}); err != nil {
			return nil, fmt.Errorf("layer%d norm shift: %w", i+1, err)
		}

		if x, err = gorgonia.Rectify(x); err != nil {
			return nil, fmt.Errorf("layer%d relu: %w", i+1, err)
		}

		if st.pool {
			if x, err = gorgonia.MaxPool2D(x, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2}); err != nil {
				return nil, fmt.Errorf("layer%d pool: %w", i+1, err)
			}
		}
	}

	// Global average pool: (1,64,7,7) -> (1,64). Decouples the classifier
	// head from the spatial resolution.
	if x, err = gorgonia.Mean(x, 2, 3); err != nil {
		return nil, fmt.Errorf("global average pool: %w", err)
	}

	fc1w := gorgonia.NodeFromAny(g, n.fc1w, gorgonia.WithName("fc1_w"))
	if x, err = gorgonia.Mul(x, fc1w); err != nil {
		return nil, fmt.Errorf("fc1: %w", err)
	}
	fc1b := gorgonia.NodeFromAny(g, n.fc1b, gorgonia.WithName("fc1_b"))
	if x, err = gorgonia.Add(x, fc1b); err != nil {
		return nil, fmt.Errorf("fc1 bias: %w", err)
	}
	if x, err = gorgonia.Rectify(x); err != nil {
		return nil, fmt.Errorf("fc1 relu: %w", err)
	}

	if n.training {
		if x, err = gorgonia.Dropout(x, dropoutRate); err != nil {
			return nil, fmt.Errorf("dropout: %w", err)
		}
	}

	fc2w := gorgonia.NodeFromAny(g, n.fc2w, gorgonia.WithName("fc2_w"))
	if x, err = gorgonia.Mul(x, fc2w); err != nil {
		return nil, fmt.Errorf("fc2: %w", err)
	}
	fc2b := gorgonia.NodeFromAny(g, n.fc2b, gorgonia.WithName("fc2_b"))
	if x, err = gorgonia.Add(x, fc2b); err != nil {
		return nil, fmt.Errorf("fc2 bias: %w", err)
	}

	m := gorgonia.NewTapeMachine(g)
	defer m.Close()
	if err := m.RunAll(); err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}

	out, ok := x.Value().Data().([]float32)
	if !ok || len(out) != NumClasses {
		return nil, fmt.Errorf("unexpected network output %v", x.Value())
	}

	logits := make([]float32, NumClasses)
	copy(logits, out)
	return logits, nil
}

// foldNorm collapses frozen running statistics and affine parameters into
// y = x*scale + shift per channel.
func foldNorm(gamma, beta, mean, variance []float32) (scale, shift []float32) {
	scale = make([]float32, len(gamma))
	shift = make([]float32, len(gamma))
	for i := range gamma {
		s := gamma[i] / float32(math.Sqrt(float64(variance[i])+bnEpsilon))
		scale[i] = s
		shift[i] = beta[i] - mean[i]*s
	}
	return scale, shift
}

func denseOf(shape []int, data []float32) *tensor.Dense {
	backing := make([]float32, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}
