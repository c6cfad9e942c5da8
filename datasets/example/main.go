package main

// Example command that loads the training and test tables, splits off a
// validation set, selects features and converts the first mini-batch into
// gomlx tensors.
//
// Usage:
//   go run ./datasets/example -train covid.train.csv -test covid.test.csv

import (
	"flag"
	"math/rand"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/covidCases/datasets"
)

func main() {
	trainPath := flag.String("train", "covid.train.csv", "training CSV")
	testPath := flag.String("test", "covid.test.csv", "test CSV")
	seed := flag.Int64("seed", 5201314, "random seed")
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	trainTable, err := datasets.LoadTable(*trainPath)
	if err != nil {
		klog.Fatalf("failed to load training table: %v", err)
	}
	testTable, err := datasets.LoadTable(*testPath)
	if err != nil {
		klog.Fatalf("failed to load test table: %v", err)
	}
	klog.Infof("Training table: %d rows x %d columns", trainTable.Rows(), trainTable.Cols())
	klog.Infof("Test table: %d rows x %d columns", testTable.Rows(), testTable.Cols())

	rng := rand.New(rand.NewSource(*seed))
	trainPart, validPart, err := datasets.SplitTable(trainTable, 0.2, rng)
	if err != nil {
		klog.Fatalf("failed to split training table: %v", err)
	}
	klog.Infof("Split: %d train / %d valid", trainPart.Rows(), validPart.Rows())

	features, err := datasets.SelectFeatures(trainPart, validPart, testTable, datasets.Selection{All: true})
	if err != nil {
		klog.Fatalf("failed to select features: %v", err)
	}
	ds, err := datasets.NewTensorDataset(features.TrainX, features.TrainY)
	if err != nil {
		klog.Fatalf("failed to build dataset: %v", err)
	}

	loader, err := datasets.NewLoader("train", ds, 8, true, rng)
	if err != nil {
		klog.Fatalf("failed to build loader: %v", err)
	}
	batch, err := loader.Next()
	if err != nil {
		klog.Fatalf("failed to read first batch: %v", err)
	}
	inT, laT, err := batch.ToGomlxTensors()
	if err != nil {
		klog.Fatalf("failed to convert batch to gomlx tensors: %v", err)
	}
	klog.Infof("Created tensors: input=%v labels=%v", inT.Shape(), laT.Shape())
	if ex, err := ds.Get(0); err == nil {
		klog.Infof("  First example: features=%v label=%v", ex.Features, ex.Label)
	}
}
