package service

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"catdog-api/internal/imaging"
	"catdog-api/internal/model"
)

// State is the lifecycle of the one loaded network. LoadFailed is terminal:
// a bad checkpoint requires a process restart, not a retry.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadFailed:
		return "load_failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrNotReady means the checkpoint never loaded; every call fails with it.
	ErrNotReady = errors.New("model is not available")
	// ErrBadImage is a per-request failure for undecodable input.
	ErrBadImage = errors.New("invalid image")
	// ErrInternal covers unexpected failures during inference.
	ErrInternal = errors.New("inference failed")
)

const probScale = 1e4

// Classifier owns the single loaded network and serves predictions from it.
// The checkpoint loads lazily on the first call, exactly once, and the
// loaded parameters are read-only afterwards, so Predict is safe to call
// concurrently.
type Classifier struct {
	modelPath string
	log       *logrus.Logger

	loadOnce sync.Once
	state    atomic.Int32
	net      *model.Network
	loadErr  error
}

func New(modelPath string, log *logrus.Logger) *Classifier {
	return &Classifier{modelPath: modelPath, log: log}
}

func (c *Classifier) State() State {
	return State(c.state.Load())
}

// Ready reports whether the network is loaded and usable. Probing triggers
// the lazy load, so a health check warms the model.
func (c *Classifier) Ready() bool {
	c.ensureLoaded()
	return c.State() == StateReady
}

// Predict classifies one image. The returned result is always populated and
// mirrors the error classification: nil error for success, ErrBadImage for
// undecodable input, ErrNotReady when the checkpoint never loaded, and
// ErrInternal otherwise.
func (c *Classifier) Predict(imageBytes []byte) (*model.PredictionResult, error) {
	if err := c.ensureLoaded(); err != nil {
		return failure("model is not available: checkpoint failed to load"), ErrNotReady
	}

	input, err := imaging.Preprocess(imageBytes)
	if err != nil {
		var decodeErr *imaging.DecodeError
		if errors.As(err, &decodeErr) {
			c.log.WithError(err).Warn("rejecting undecodable upload")
			return failure("uploaded file is not a valid image"), ErrBadImage
		}
		c.log.WithError(err).Error("preprocessing failed")
		return failure("internal error while processing image"), ErrInternal
	}

	logits, err := c.net.Forward(input)
	if err != nil {
		c.log.WithError(err).Error("forward pass failed")
		return failure("internal error during inference"), ErrInternal
	}

	catProb, dogProb := softmax2(logits[0], logits[1])
	catProb = round4(catProb)
	dogProb = round4(dogProb)

	// Index 0 is cat; an exact tie stays with it.
	label := model.ClassNames[0]
	confidence := catProb
	if dogProb > catProb {
		label = model.ClassNames[1]
		confidence = dogProb
	}

	return &model.PredictionResult{
		Prediction:     &label,
		Confidence:     confidence,
		CatProbability: catProb,
		DogProbability: dogProb,
		Success:        true,
	}, nil
}

// ensureLoaded performs the one-time checkpoint load. Concurrent first
// callers block on the Once and then all observe the same outcome.
func (c *Classifier) ensureLoaded() error {
	c.loadOnce.Do(func() {
		c.state.Store(int32(StateLoading))
		c.log.WithField("path", c.modelPath).Info("loading model checkpoint")

		params, err := model.LoadCheckpoint(c.modelPath)
		if err != nil {
			c.loadErr = fmt.Errorf("load checkpoint: %w", err)
			c.state.Store(int32(StateLoadFailed))
			c.log.WithError(err).Error("model load failed; all predictions will be rejected until restart")
			return
		}

		net, err := model.NewNetwork(params)
		if err != nil {
			c.loadErr = fmt.Errorf("build network: %w", err)
			c.state.Store(int32(StateLoadFailed))
			c.log.WithError(err).Error("model load failed; all predictions will be rejected until restart")
			return
		}

		net.SetTraining(false)
		c.net = net
		c.state.Store(int32(StateReady))
		c.log.Info("model loaded")
	})
	return c.loadErr
}

// softmax2 normalizes two logits into probabilities, shifted by the max for
// numeric stability.
func softmax2(a, b float32) (pa, pb float64) {
	fa, fb := float64(a), float64(b)
	m := math.Max(fa, fb)
	ea := math.Exp(fa - m)
	eb := math.Exp(fb - m)
	sum := ea + eb
	return ea / sum, eb / sum
}

func round4(p float64) float64 {
	return math.Round(p*probScale) / probScale
}

func failure(msg string) *model.PredictionResult {
	return &model.PredictionResult{Error: &msg}
}
