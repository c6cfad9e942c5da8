package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Noofbiz/covidCases/simple"
)

// fileConfig is the on-disk JSON layout. Pointer fields distinguish an
// absent key from a zero value.
type fileConfig struct {
	Training *struct {
		Device         *string  `json:"device"`
		Seed           *int64   `json:"seed"`
		SelectAll      *bool    `json:"select_all"`
		FeatureColumns []int    `json:"feature_columns"`
		ValidRatio     *float64 `json:"valid_ratio"`
		Epochs         *int     `json:"epochs"`
		BatchSize      *int     `json:"batch_size"`
		LearningRate   *float64 `json:"learning_rate"`
		WeightDecay    *float64 `json:"weight_decay"`
		EarlyStop      *int     `json:"early_stop"`
		SavePath       *string  `json:"save_path"`
	} `json:"training"`
	Outputs *struct {
		MetricsCSV *string `json:"metrics_csv"`
		Plot       *string `json:"plot"`
		BaselineK  *int    `json:"baseline_k"`
	} `json:"outputs"`
}

// outputs holds the run settings that are not model hyperparameters.
type outputs struct {
	MetricsCSV string `json:"metrics_csv"`
	Plot       string `json:"plot"`
	BaselineK  int    `json:"baseline_k"`
}

// effectiveConfig is what -print-effective-config and -write-default-config
// emit. It round-trips through fileConfig.
type effectiveConfig struct {
	Training struct {
		Device         string  `json:"device"`
		Seed           int64   `json:"seed"`
		SelectAll      bool    `json:"select_all"`
		FeatureColumns []int   `json:"feature_columns"`
		ValidRatio     float64 `json:"valid_ratio"`
		Epochs         int     `json:"epochs"`
		BatchSize      int     `json:"batch_size"`
		LearningRate   float64 `json:"learning_rate"`
		WeightDecay    float64 `json:"weight_decay"`
		EarlyStop      int     `json:"early_stop"`
		SavePath       string  `json:"save_path"`
	} `json:"training"`
	Outputs outputs `json:"outputs"`
}

func newEffectiveConfig(cfg simple.Config, out outputs) effectiveConfig {
	var e effectiveConfig
	e.Training.Device = cfg.Device
	e.Training.Seed = cfg.Seed
	e.Training.SelectAll = cfg.SelectAll
	e.Training.FeatureColumns = cfg.FeatureColumns
	e.Training.ValidRatio = cfg.ValidRatio
	e.Training.Epochs = cfg.Epochs
	e.Training.BatchSize = cfg.BatchSize
	e.Training.LearningRate = cfg.LearningRate
	e.Training.WeightDecay = cfg.WeightDecay
	e.Training.EarlyStop = cfg.EarlyStop
	e.Training.SavePath = cfg.SavePath
	e.Outputs = out
	return e
}

func writeConfig(w io.Writer, cfg simple.Config, out outputs) error {
	data, err := json.MarshalIndent(newEffectiveConfig(cfg, out), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// loadFileConfig reads path and applies every key whose flag was not set
// explicitly on the command line. explicit holds the names of flags the
// user passed.
func loadFileConfig(path string, cfg *simple.Config, out *outputs, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	var raw fileConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	applyFileConfig(raw, cfg, out, explicit)
	return nil
}

func applyFileConfig(raw fileConfig, cfg *simple.Config, out *outputs, explicit map[string]bool) {
	if t := raw.Training; t != nil {
		if t.Device != nil && !explicit["device"] {
			cfg.Device = *t.Device
		}
		if t.Seed != nil && !explicit["seed"] {
			cfg.Seed = *t.Seed
		}
		if t.SelectAll != nil && !explicit["select-all"] {
			cfg.SelectAll = *t.SelectAll
		}
		if t.FeatureColumns != nil && !explicit["feature-columns"] {
			cfg.FeatureColumns = t.FeatureColumns
		}
		if t.ValidRatio != nil && !explicit["valid-ratio"] {
			cfg.ValidRatio = *t.ValidRatio
		}
		if t.Epochs != nil && !explicit["epochs"] {
			cfg.Epochs = *t.Epochs
		}
		if t.BatchSize != nil && !explicit["batch-size"] {
			cfg.BatchSize = *t.BatchSize
		}
		if t.LearningRate != nil && !explicit["learning-rate"] {
			cfg.LearningRate = *t.LearningRate
		}
		if t.WeightDecay != nil && !explicit["weight-decay"] {
			cfg.WeightDecay = *t.WeightDecay
		}
		if t.EarlyStop != nil && !explicit["early-stop"] {
			cfg.EarlyStop = *t.EarlyStop
		}
		if t.SavePath != nil && !explicit["save-path"] {
			cfg.SavePath = *t.SavePath
		}
	}
	if o := raw.Outputs; o != nil {
		if o.MetricsCSV != nil && !explicit["metrics-csv"] {
			out.MetricsCSV = *o.MetricsCSV
		}
		if o.Plot != nil && !explicit["plot"] {
			out.Plot = *o.Plot
		}
		if o.BaselineK != nil && !explicit["baseline-k"] {
			out.BaselineK = *o.BaselineK
		}
	}
}

// parseColumns parses a comma-separated list of column indices, e.g. "0,3,7".
func parseColumns(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	cols := make([]int, 0, len(parts))
	for _, p := range parts {
		c, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "bad column index %q", p)
		}
		cols = append(cols, c)
	}
	return cols, nil
}
