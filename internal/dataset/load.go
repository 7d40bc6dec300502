package dataset

import (
	"math/rand/v2"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Data formats accepted by Load.
const (
	FormatIDX       = "idx"
	FormatFolder    = "folder"
	FormatSynthetic = "synthetic"
)

// Synthetic dataset sizes used by Load.
const (
	syntheticTrain = 2000
	syntheticTest  = 500
	syntheticNoise = 0.15
)

// Load returns the train and test sets of a data directory.
//
//   - "idx": MNIST IDX files in dir
//   - "folder": dir/train and dir/test image folders, resized to shape
//   - "synthetic": Gaussian blobs of shape with the given number of classes; dir is ignored
func Load(format, dir string, shape tensor.Shape, classes int, rng *rand.Rand) (train, test *Dataset, err error) {
	switch format {
	case FormatIDX:
		if train, err = LoadMNIST(dir, true, 0); err != nil {
			return nil, nil, err
		}
		if test, err = LoadMNIST(dir, false, 0); err != nil {
			return nil, nil, err
		}
	case FormatFolder:
		var trainClasses, testClasses []string
		if train, trainClasses, err = LoadImageFolder(filepath.Join(dir, "train"), shape); err != nil {
			return nil, nil, err
		}
		if test, testClasses, err = LoadImageFolder(filepath.Join(dir, "test"), shape); err != nil {
			return nil, nil, err
		}
		if len(trainClasses) != len(testClasses) {
			return nil, nil, errors.Errorf("train has %d classes, test has %d", len(trainClasses), len(testClasses))
		}
	case FormatSynthetic:
		all, err := Blobs(syntheticTrain+syntheticTest, classes, shape, syntheticNoise, rng)
		if err != nil {
			return nil, nil, err
		}
		trainIdx := make([]int, syntheticTrain)
		testIdx := make([]int, syntheticTest)
		for i := range trainIdx {
			trainIdx[i] = i
		}
		for i := range testIdx {
			testIdx[i] = syntheticTrain + i
		}
		if train, err = all.Subset(trainIdx); err != nil {
			return nil, nil, err
		}
		if test, err = all.Subset(testIdx); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errors.Errorf("unknown data format %q", format)
	}

	if !train.Shape().Equal(shape) {
		return nil, nil, errors.Errorf("data sample shape %v does not match input shape %v", train.Shape(), shape)
	}
	return train, test, nil
}
