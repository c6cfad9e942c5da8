// Command covid trains the case-count regressor on a training CSV, keeps the
// checkpoint with the best validation loss, and writes predictions for a test
// CSV as an id,tested_positive submission.
package main

import (
	"flag"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/covidCases/baseline"
	"github.com/Noofbiz/covidCases/datasets"
	"github.com/Noofbiz/covidCases/metrics"
	"github.com/Noofbiz/covidCases/simple"
)

func main() {
	klog.InitFlags(nil)
	defaults := simple.DefaultConfig()

	trainPath := flag.String("train", "covid.train.csv", "training CSV (features followed by the tested_positive label)")
	testPath := flag.String("test", "covid.test.csv", "test CSV (features only)")
	outPath := flag.String("out", "pred.csv", "path of the submission CSV")
	configPath := flag.String("config", "", "optional JSON config file; its values apply to flags left unset")

	device := flag.String("device", defaults.Device, "gomlx backend configuration, e.g. 'go'")
	seed := flag.Int64("seed", defaults.Seed, "random seed for splitting, shuffling and initialization")
	selectAll := flag.Bool("select-all", defaults.SelectAll, "use every feature column")
	featureColumns := flag.String("feature-columns", "", "comma-separated feature column indices used when -select-all=false")
	validRatio := flag.Float64("valid-ratio", defaults.ValidRatio, "fraction of the training rows held out for validation")
	epochs := flag.Int("epochs", defaults.Epochs, "maximum number of epochs")
	batchSize := flag.Int("batch-size", defaults.BatchSize, "mini-batch size")
	learningRate := flag.Float64("learning-rate", defaults.LearningRate, "Adam learning rate")
	weightDecay := flag.Float64("weight-decay", defaults.WeightDecay, "Adam weight decay")
	earlyStop := flag.Int("early-stop", defaults.EarlyStop, "epochs without validation improvement before stopping")
	savePath := flag.String("save-path", defaults.SavePath, "checkpoint directory")

	metricsCSV := flag.String("metrics-csv", "", "if set, append per-epoch loss events to this CSV")
	plotPath := flag.String("plot", "", "if set, write a loss curve PNG to this path")
	baselineK := flag.Int("baseline-k", 0, "if > 0, report validation RMSE of a k-nearest-neighbour baseline")

	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")
	writeDefaultConfig := flag.String("write-default-config", "", "write the default JSON configuration to this path and exit")

	flag.Parse()
	defer klog.Flush()

	if *writeDefaultConfig != "" {
		if err := writeDefaultConfigFile(*writeDefaultConfig); err != nil {
			klog.Fatalf("failed to write default config: %v", err)
		}
		klog.Infof("Wrote default config to %s", *writeDefaultConfig)
		return
	}

	cols, err := parseColumns(*featureColumns)
	if err != nil {
		klog.Fatalf("invalid -feature-columns: %v", err)
	}
	cfg := simple.Config{
		Device:         *device,
		Seed:           *seed,
		SelectAll:      *selectAll,
		FeatureColumns: cols,
		ValidRatio:     *validRatio,
		Epochs:         *epochs,
		BatchSize:      *batchSize,
		LearningRate:   *learningRate,
		WeightDecay:    *weightDecay,
		EarlyStop:      *earlyStop,
		SavePath:       *savePath,
	}
	out := outputs{MetricsCSV: *metricsCSV, Plot: *plotPath, BaselineK: *baselineK}

	if *configPath != "" {
		explicit := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		if err := loadFileConfig(*configPath, &cfg, &out, explicit); err != nil {
			klog.Fatalf("%v", err)
		}
		klog.Infof("Loaded config from %s", *configPath)
	}

	if *printEffectiveConfig {
		if err := writeConfig(os.Stdout, cfg, out); err != nil {
			klog.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg, out, *trainPath, *testPath, *outPath); err != nil {
		klog.Fatalf("%v", err)
	}
}

func writeDefaultConfigFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := writeConfig(f, simple.DefaultConfig(), outputs{}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// run is the whole pipeline: load, split, select, train, reload the best
// checkpoint, predict and write the submission.
func run(cfg simple.Config, out outputs, trainPath, testPath, outPath string) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	rng := simple.NewRand(cfg.Seed)

	trainTable, err := datasets.LoadTable(trainPath)
	if err != nil {
		return err
	}
	testTable, err := datasets.LoadTable(testPath)
	if err != nil {
		return err
	}
	klog.Infof("Loaded %d training rows and %d test rows (%d train columns)", trainTable.Rows(), testTable.Rows(), trainTable.Cols())

	trainPart, validPart, err := datasets.SplitTable(trainTable, cfg.ValidRatio, rng)
	if err != nil {
		return err
	}
	klog.Infof("train_data size: %d, valid_data size: %d, test_data size: %d", trainPart.Rows(), validPart.Rows(), testTable.Rows())

	features, err := datasets.SelectFeatures(trainPart, validPart, testTable, datasets.Selection{All: cfg.SelectAll, Columns: cfg.FeatureColumns})
	if err != nil {
		return err
	}
	klog.Infof("number of features: %d", len(features.Columns))

	trainDS, err := datasets.NewTensorDataset(features.TrainX, features.TrainY)
	if err != nil {
		return errors.Wrap(err, "training dataset")
	}
	validDS, err := datasets.NewTensorDataset(features.ValidX, features.ValidY)
	if err != nil {
		return errors.Wrap(err, "validation dataset")
	}
	testDS, err := datasets.NewTensorDataset(features.TestX, nil)
	if err != nil {
		return errors.Wrap(err, "test dataset")
	}

	trainLoader, err := datasets.NewLoader("train", trainDS, cfg.BatchSize, true, rng)
	if err != nil {
		return err
	}
	validLoader, err := datasets.NewLoader("valid", validDS, cfg.BatchSize, true, rng)
	if err != nil {
		return err
	}
	testLoader, err := datasets.NewLoader("test", testDS, cfg.BatchSize, false, nil)
	if err != nil {
		return err
	}

	backend, err := simple.NewBackend(cfg.Device)
	if err != nil {
		return err
	}
	model, err := simple.NewModel(backend, trainDS.Width(), cfg)
	if err != nil {
		return err
	}

	recorder := &metrics.Recorder{}
	sink := metrics.Multi{recorder}
	if out.MetricsCSV != "" {
		csvSink, err := metrics.NewCSVSink(out.MetricsCSV, true)
		if err != nil {
			return err
		}
		defer func() {
			if err := csvSink.Close(); err != nil {
				klog.Warningf("closing metrics file: %v", err)
			}
		}()
		sink = append(sink, csvSink)
	}

	res, err := model.TrainWithLoaders(trainLoader, validLoader, sink)
	if err != nil {
		return errors.Wrap(err, "training failed")
	}
	klog.Infof("Training finished after %d epochs (%d steps); best valid loss %.4f at epoch %d", res.Epochs, res.Steps, res.BestLoss, res.BestEpoch)

	if out.Plot != "" {
		if err := metrics.PlotSeries(out.Plot, "Loss", recorder.Events(), simple.MetricTrainLoss, simple.MetricValidLoss); err != nil {
			klog.Warningf("failed to write loss plot: %v", err)
		} else {
			klog.Infof("Wrote loss curve to %s", out.Plot)
		}
	}

	best, err := simple.LoadModel(backend, cfg.SavePath, trainDS.Width(), cfg)
	if err != nil {
		return errors.Wrap(err, "reloading best checkpoint")
	}

	if out.BaselineK > 0 {
		if err := compareBaseline(best, trainDS, validDS, out.BaselineK); err != nil {
			klog.Warningf("baseline comparison failed: %v", err)
		}
	}

	preds, err := best.Predict(testLoader)
	if err != nil {
		return errors.Wrap(err, "prediction failed")
	}
	if err := datasets.WriteSubmission(outPath, preds); err != nil {
		return err
	}
	klog.Infof("Saving results to %s", outPath)
	return nil
}

// compareBaseline logs the validation RMSE of the model next to a
// k-nearest-neighbour regressor fitted on the training split.
func compareBaseline(model *simple.Model, trainDS, validDS *datasets.TensorDataset, k int) error {
	knn, err := baseline.NewKNN(trainDS, k)
	if err != nil {
		return err
	}
	knnRMSE, err := knn.RMSE(validDS)
	if err != nil {
		return err
	}
	modelRMSE, err := validationRMSE(model, validDS)
	if err != nil {
		return err
	}
	klog.Infof("Validation RMSE: model=%.4f knn(k=%d)=%.4f", modelRMSE, k, knnRMSE)
	return nil
}

// validationRMSE scores model on the whole of ds as one unshuffled batch, so
// the mean of batch errors is the exact MSE over ds.
func validationRMSE(model *simple.Model, ds *datasets.TensorDataset) (float64, error) {
	l, err := datasets.NewLoader("valid-eval", ds, ds.Len(), false, nil)
	if err != nil {
		return 0, err
	}
	mse, err := model.Evaluate(l)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}
