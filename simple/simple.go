// Package simple holds the case-count regression model: a small gomlx MLP,
// its training loop with early stopping and checkpointing, and inference.
package simple

import (
	"path/filepath"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/pkg/errors"
)

const (
	// HiddenSize is the width of both hidden layers.
	HiddenSize = 16

	// LeakySlope scales negative inputs of the leaky ReLU activations.
	LeakySlope = 0.01
)

// Config holds the hyperparameters of a run. It is passed by value and is
// never modified once training starts.
type Config struct {
	// Device is the gomlx backend configuration, e.g. "go" for the pure Go
	// CPU backend or "xla:cuda" when an XLA build is available.
	Device string

	// Seed feeds both the Go RNG used for splitting/shuffling and the
	// parameter initializers.
	Seed int64

	// SelectAll selects all feature columns. When false FeatureColumns is
	// used, falling back to a fixed subset when it is empty.
	SelectAll      bool
	FeatureColumns []int

	// ValidRatio is the fraction of training rows held out for validation.
	ValidRatio float64

	Epochs    int
	BatchSize int

	// LearningRate and WeightDecay configure the Adam optimizer.
	LearningRate float64
	WeightDecay  float64

	// EarlyStop is the number of consecutive epochs without validation
	// improvement after which training halts.
	EarlyStop int

	// SavePath is the checkpoint directory. It is overwritten on every
	// improvement.
	SavePath string
}

// DefaultConfig returns the hyperparameters used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		Device:       "go",
		Seed:         5201314,
		SelectAll:    true,
		ValidRatio:   0.2,
		Epochs:       3000,
		BatchSize:    256,
		LearningRate: 1e-3,
		WeightDecay:  1e-4,
		EarlyStop:    400,
		SavePath:     "models/model.ckpt",
	}
}

// Validate checks the ranges of the hyperparameters.
func (c Config) Validate() error {
	switch {
	case c.Device == "":
		return errors.New("device is empty")
	case c.ValidRatio < 0 || c.ValidRatio >= 1:
		return errors.Errorf("valid ratio must be in [0, 1), got %g", c.ValidRatio)
	case c.Epochs <= 0:
		return errors.Errorf("epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return errors.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.LearningRate < 0:
		return errors.Errorf("learning rate must be non-negative, got %g", c.LearningRate)
	case c.WeightDecay < 0:
		return errors.Errorf("weight decay must be non-negative, got %g", c.WeightDecay)
	case c.EarlyStop <= 0:
		return errors.Errorf("early stop patience must be positive, got %d", c.EarlyStop)
	}
	switch filepath.Clean(c.SavePath) {
	case ".", "/", "":
		return errors.Errorf("invalid save path %q", c.SavePath)
	}
	return nil
}

// NewBackend creates the gomlx backend selected by device.
func NewBackend(device string) (backends.Backend, error) {
	backend, err := backends.NewWithConfig(device)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create gomlx backend %q", device)
	}
	return backend, nil
}

// Model is the case-count regressor:
//
//	input -> dense(16) -> leaky relu -> dense(16) -> leaky relu -> dense(1)
//
// squeezed to one scalar per input row. Its parameters live in a gomlx
// context and are only changed by the optimizer in TrainWithLoaders.
type Model struct {
	// Config used for training / checkpointing.
	Config Config

	backend  backends.Backend
	ctx      *context.Context
	inputDim int

	exec *context.Exec

	// checkpoint handler, created on the first save
	ckpt     *checkpoints.Handler
	ckptPath string
}

// NewModel creates a model for inputDim features. Parameters are created
// lazily, from initializers seeded with cfg.Seed, the first time a graph is
// built.
func NewModel(backend backends.Backend, inputDim int, cfg Config) (*Model, error) {
	if backend == nil {
		return nil, errors.New("backend is nil")
	}
	if inputDim <= 0 {
		return nil, errors.Errorf("input dimension must be positive, got %d", inputDim)
	}
	ctx := context.New().Checked(false)
	seedContext(ctx, cfg.Seed)
	return &Model{
		Config:   cfg,
		backend:  backend,
		ctx:      ctx,
		inputDim: inputDim,
	}, nil
}

// InputDim returns the number of features the model expects.
func (m *Model) InputDim() int { return m.inputDim }

// ModelGraph builds the forward pass. It follows the gomlx train.ModelFn
// signature: inputs[0] is a [batch, features] tensor and the single output
// is shaped [batch].
func ModelGraph(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
	_ = spec
	x := inputs[0]
	batchSize := x.Shape().Dimensions[0]
	ctx = ctx.In("model")

	x = layers.Dense(ctx.In("dense_0"), x, true, HiddenSize)
	x = leakyRelu(x)
	x = layers.Dense(ctx.In("dense_1"), x, true, HiddenSize)
	x = leakyRelu(x)
	x = layers.Dense(ctx.In("dense_2"), x, true, 1)
	return []*graph.Node{graph.Reshape(x, batchSize)}
}

// leakyRelu is max(x, slope*x), which for 0 < slope < 1 passes positive
// values and scales negative ones.
func leakyRelu(x *graph.Node) *graph.Node {
	return graph.Max(x, graph.MulScalar(x, LeakySlope))
}

// PredictBatch runs a forward pass over rows of features.
func (m *Model) PredictBatch(inputs [][]float32) ([]float32, error) {
	if len(inputs) == 0 {
		return []float32{}, nil
	}
	flat := make([]float32, 0, len(inputs)*m.inputDim)
	for i, row := range inputs {
		if len(row) != m.inputDim {
			return nil, errors.Errorf("input %d has %d features, model expects %d", i, len(row), m.inputDim)
		}
		flat = append(flat, row...)
	}
	return m.predictTensor(tensors.FromFlatDataAndDimensions(flat, len(inputs), m.inputDim))
}

// predictTensor runs the forward pass over a [batch, inputDim] tensor.
func (m *Model) predictTensor(x *tensors.Tensor) ([]float32, error) {
	dims := x.Shape().Dimensions
	if len(dims) != 2 || dims[1] != m.inputDim {
		return nil, errors.Errorf("input shape %v does not match model input dimension %d", dims, m.inputDim)
	}
	if m.exec == nil {
		var err error
		m.exec, err = context.NewExec(m.backend, m.ctx, func(ctx *context.Context, x *graph.Node) *graph.Node {
			return ModelGraph(ctx, nil, []*graph.Node{x})[0]
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create inference executor")
		}
	}

	var outputs []*tensors.Tensor
	err := catch(func() {
		var execErr error
		outputs, execErr = m.exec.Exec(x)
		if execErr != nil {
			panic(execErr)
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "forward pass failed")
	}
	preds, ok := outputs[0].Value().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected prediction type %T", outputs[0].Value())
	}
	return preds, nil
}

// catch runs fn, converting a panic raised by gomlx while building or
// executing graphs into an error.
func catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.WithStack(e)
				return
			}
			err = errors.Errorf("%v", r)
		}
	}()
	fn()
	return nil
}
