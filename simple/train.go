package simple

import (
	"io"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/covidCases/datasets"
	"github.com/Noofbiz/covidCases/metrics"
)

// Metric names emitted to the sink, one event of each per epoch.
const (
	MetricTrainLoss = "Loss/train"
	MetricValidLoss = "Loss/valid"
)

// Loader is what the trainer and the predictor need from a batch source:
// a datasets.Yielder that also reports its feature width.
// datasets.Loader implements it.
type Loader interface {
	datasets.Yielder
	// Width is the number of features per example.
	Width() int
}

// EpochStats summarizes one epoch.
type EpochStats struct {
	Epoch     int
	Step      int
	TrainLoss float64
	ValidLoss float64
	State     State
}

// Result summarizes a completed training run.
type Result struct {
	// Epochs is the number of epochs run.
	Epochs int
	// Steps is the number of optimizer steps taken.
	Steps int
	// BestLoss is the validation loss of the saved checkpoint.
	BestLoss float64
	// BestEpoch is the epoch that produced BestLoss.
	BestEpoch int
	// EarlyStopped is true when training halted on patience rather than on
	// the epoch budget.
	EarlyStopped bool
	History      []EpochStats
}

// TrainWithLoaders runs mini-batch training with Adam on mean-squared
// error, validating after every epoch. The parameters are checkpointed to
// Config.SavePath whenever the validation loss strictly improves, and
// training stops after Config.EarlyStop epochs without improvement or when
// Config.Epochs is exhausted. sink may be nil.
//
// Non-finite losses are not detected per epoch, but a run in which no epoch
// improved (for instance because every validation loss was NaN) returns an
// error along with the partial Result.
func (m *Model) TrainWithLoaders(trainLoader, validLoader Loader, sink metrics.Sink) (*Result, error) {
	cfg := m.Config
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if trainLoader == nil || validLoader == nil {
		return nil, errors.New("train and valid loaders are required")
	}
	for _, l := range []Loader{trainLoader, validLoader} {
		if l.Width() != m.inputDim {
			return nil, errors.Errorf("loader has %d features, model expects %d", l.Width(), m.inputDim)
		}
	}
	if sink == nil {
		sink = metrics.Discard
	}
	// Whatever is at the save path belongs to an earlier run; drop it so
	// only a checkpoint written by this run can be reloaded.
	if err := ClearCheckpoint(cfg.SavePath); err != nil {
		return nil, err
	}
	m.ckpt = nil

	m.ctx.SetParam(optimizers.ParamLearningRate, cfg.LearningRate)
	optimizer := optimizers.Adam().
		LearningRate(cfg.LearningRate).
		WeightDecay(cfg.WeightDecay).
		Done()
	var trainer *train.Trainer
	if err := catch(func() {
		trainer = train.NewTrainer(m.backend, m.ctx, ModelGraph, losses.MeanSquaredError, optimizer, nil, nil)
	}); err != nil {
		return nil, errors.Wrap(err, "failed to create trainer")
	}

	res := &Result{BestLoss: math.Inf(1)}
	stopper := NewEarlyStopper(cfg.EarlyStop)
	step := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		trainLoss, err := m.trainEpoch(trainer, trainLoader, &step)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		validLoss, err := m.Evaluate(validLoader)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d validation", epoch)
		}
		if err := sink.Add(MetricTrainLoss, trainLoss, step); err != nil {
			return nil, err
		}
		if err := sink.Add(MetricValidLoss, validLoss, step); err != nil {
			return nil, err
		}

		state := stopper.Observe(validLoss)
		klog.Infof("Epoch [%d/%d]: Train loss: %.4f, Valid loss: %.4f", epoch, cfg.Epochs, trainLoss, validLoss)
		if state == Improved {
			if err := m.Save(cfg.SavePath); err != nil {
				return nil, err
			}
			res.BestLoss = validLoss
			res.BestEpoch = epoch
			klog.Infof("Saving model with loss %.3f...", validLoss)
		}

		res.Epochs = epoch
		res.Steps = step
		res.History = append(res.History, EpochStats{
			Epoch:     epoch,
			Step:      step,
			TrainLoss: trainLoss,
			ValidLoss: validLoss,
			State:     state,
		})
		if state == Done {
			klog.Infof("Model is not improving for %d epochs, so we halt the training session.", stopper.StallCount())
			res.EarlyStopped = true
			break
		}
	}
	if res.BestEpoch == 0 {
		return res, errors.Errorf("validation loss never improved in %d epochs (last %g); no checkpoint was written", res.Epochs, res.History[len(res.History)-1].ValidLoss)
	}
	return res, nil
}

// trainEpoch runs one pass over l, taking one optimizer step per batch, and
// returns the mean batch loss. step is incremented once per batch.
func (m *Model) trainEpoch(trainer *train.Trainer, l Loader, step *int) (float64, error) {
	l.Reset()
	var batchLosses []float64
	for {
		spec, inputs, labels, err := l.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrap(err, "failed to read training batch")
		}
		if len(labels) == 0 {
			return 0, errors.New("training batch has no labels")
		}

		var results []*tensors.Tensor
		if err := catch(func() {
			results = trainer.TrainStep(spec, inputs, labels)
		}); err != nil {
			return 0, errors.Wrapf(err, "train step %d", *step)
		}
		*step++
		loss, err := scalarValue(results[0])
		if err != nil {
			return 0, errors.Wrap(err, "batch loss")
		}
		batchLosses = append(batchLosses, loss)
		klog.V(2).Infof("step %d: batch loss %.6f", *step, loss)
	}
	if len(batchLosses) == 0 {
		return 0, errors.New("training loader yielded no batches")
	}
	return stat.Mean(batchLosses, nil), nil
}

// Evaluate runs a full pass over a labeled loader without updating the
// parameters and returns the mean of the per-batch mean-squared errors.
func (m *Model) Evaluate(l Loader) (float64, error) {
	l.Reset()
	var batchLosses []float64
	for {
		_, inputs, labels, err := l.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrap(err, "failed to read validation batch")
		}
		if len(labels) == 0 {
			return 0, errors.New("validation batch has no labels")
		}
		preds, err := m.predictTensor(inputs[0])
		if err != nil {
			return 0, err
		}
		targets, ok := labels[0].Value().([]float32)
		if !ok {
			return 0, errors.Errorf("unexpected label type %T", labels[0].Value())
		}
		batchLosses = append(batchLosses, meanSquaredError(preds, targets))
	}
	if len(batchLosses) == 0 {
		return 0, errors.New("validation loader yielded no batches")
	}
	return stat.Mean(batchLosses, nil), nil
}

func meanSquaredError(preds, targets []float32) float64 {
	sq := make([]float64, len(preds))
	for i := range preds {
		d := float64(preds[i]) - float64(targets[i])
		sq[i] = d * d
	}
	return stat.Mean(sq, nil)
}

func scalarValue(t *tensors.Tensor) (float64, error) {
	switch v := t.Value().(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, errors.Errorf("expected a float scalar, got %T", v)
	}
}
