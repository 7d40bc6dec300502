// Command analyzer trains a classifier, instruments every layer and reports
// how much data each layer emits compared with the raw input.
//
// Usage:
//
//	analyzer --config configs/mnist-cnn-float16.yaml --format idx --data ./data/mnist
//	analyzer --config configs/caltech101-cnn-uint8.yaml --format folder --data ./data/caltech101 \
//	    --ctype jpeg --csize 50 -evaluate
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/dataset"
	"github.com/nitishmital/head-network-distillation/internal/models"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/profile"
	"github.com/nitishmital/head-network-distillation/internal/report"
	"github.com/nitishmital/head-network-distillation/internal/train"
)

var (
	flagData     = flag.String("data", "./resource/data/", "Data directory.")
	flagFormat   = flag.String("format", dataset.FormatFolder, "Data format: idx (MNIST), folder (class per directory, train/ and test/) or synthetic.")
	flagConfig   = flag.String("config", "", "Experiment YAML file (required).")
	flagCkpt     = flag.String("ckpt", "./resource/ckpt/", "Checkpoint directory.")
	flagBatch    = flag.Int("bsize", 100, "Number of samples per batch.")
	flagEpochs   = flag.Int("epoch", 100, "Number of epochs to train.")
	flagLR       = flag.Float64("lr", 0.1, "Learning rate.")
	flagValid    = flag.Float64("vrate", 0.1, "Fraction of the training set held out for validation.")
	flagInterval = flag.Int("interval", 50, "Batches between training loss log lines (-v=1).")
	flagCType    = flag.String("ctype", "", "Input compression type: jpeg or resize.")
	flagCSize    = flag.String("csize", "", "Input compression size: JPEG quality or resize factor.")
	flagAE       = flag.String("ae", "", "Autoencoder experiment YAML file; its checkpoint is read from --ckpt.")
	flagInit     = flag.Bool("init", false, "Ignore and overwrite an existing checkpoint.")
	flagEvaluate = flag.Bool("evaluate", false, "Skip training and only profile the checkpointed model.")
	flagSample   = flag.Bool("per_sample", true, "Report per-sample layer sizes instead of per-batch ones.")
	flagJSON     = flag.String("json", "", "Also write the report as JSON to this file.")
	flagProgress = flag.Bool("progress", true, "Show progress bars.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagConfig == "" {
		klog.Exitf("--config is required")
	}
	if err := run(); err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

// overrideTrain copies explicitly set command-line flags into cfg.
func overrideTrain(cfg *config.TrainConfig) error {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bsize":
			cfg.BatchSize = *flagBatch
		case "epoch":
			cfg.Epochs = *flagEpochs
		case "lr":
			cfg.LR = float32(*flagLR)
		case "vrate":
			cfg.ValidRate = *flagValid
		case "interval":
			cfg.LogInterval = *flagInterval
		}
	})
	return cfg.Validate()
}

func run() error {
	cfg := must.M1(config.Load(*flagConfig))
	if err := overrideTrain(&cfg.Train); err != nil {
		return err
	}
	rng := nn.NewRNG(cfg.Train.Seed)

	trainSet, testSet, err := dataset.Load(*flagFormat, *flagData, cfg.Shape(), cfg.NumClasses, rng)
	if err != nil {
		return err
	}
	compressor, err := dataset.ParseCompressor(*flagCType, *flagCSize)
	if err != nil {
		return err
	}
	if trainSet, err = compressor.Apply(trainSet); err != nil {
		return err
	}
	if testSet, err = compressor.Apply(testSet); err != nil {
		return err
	}
	inputCompression := compressor.String()

	if *flagAE != "" {
		ae, err := train.LoadAutoencoder(*flagAE, *flagCkpt)
		if err != nil {
			return err
		}
		if trainSet, err = train.ApplyAutoencoder(ae, trainSet, cfg.Train.BatchSize); err != nil {
			return err
		}
		if testSet, err = train.ApplyAutoencoder(ae, testSet, cfg.Train.BatchSize); err != nil {
			return err
		}
		inputCompression += " + autoencoder"
	}

	trainSet, validSet, err := trainSet.Split(cfg.Train.ValidRate, rng)
	if err != nil {
		return err
	}
	klog.Infof("Data: %d train, %d validation, %d test samples of shape %v",
		trainSet.Len(), validSet.Len(), testSet.Len(), trainSet.Shape())
	trainLoader := must.M1(dataset.NewLoader(trainSet, cfg.Train.BatchSize, true, rng))
	validLoader := must.M1(dataset.NewLoader(validSet, cfg.Train.BatchSize, false, nil))
	testLoader := must.M1(dataset.NewLoader(testSet, cfg.Train.BatchSize, false, nil))

	model, err := models.NewClassifier(cfg, rng)
	if err != nil {
		return err
	}
	optimizer, err := train.NewOptimizer(cfg.Train, model.Parameters())
	if err != nil {
		return err
	}
	trainer := train.NewTrainer(model, optimizer, train.Options{
		CheckpointPath: train.CheckpointPath(*flagCkpt, cfg.ExperimentName),
		ModelType:      cfg.Model.Type,
		LogInterval:    cfg.Train.LogInterval,
		Progress:       *flagProgress,
	})
	start, err := trainer.Resume(*flagInit)
	if err != nil {
		return err
	}
	if !*flagEvaluate {
		if validSet.Len() == 0 {
			return errors.New("validation set is empty, raise --vrate")
		}
		if err := trainer.Fit(trainLoader, validLoader, start, cfg.Train.Epochs); err != nil {
			return err
		}
	}

	var opts []profile.Option
	if *flagSample {
		opts = append(opts, profile.PerSample())
	}
	wrappers, err := profile.Wrap(model, opts...)
	if err != nil {
		return err
	}
	klog.V(1).Infof("Instrumented %d layers", len(wrappers))

	result, err := train.Evaluate(model, testLoader, "Test", *flagProgress, os.Stderr)
	if err != nil {
		return err
	}
	p, unmeasured, err := profile.ExtractMeasured(model)
	if err != nil {
		return err
	}
	for _, path := range unmeasured {
		klog.Warningf("Layer %s saw no data", path)
	}

	rep := report.New(cfg.ExperimentName, p, result.InputBandwidth, result.Accuracy)
	rep.InputCompression = inputCompression
	rep.Unmeasured = unmeasured
	if err := rep.WriteText(os.Stdout); err != nil {
		return err
	}
	if candidates := rep.SplitCandidates(); len(candidates) > 0 {
		fmt.Printf("Layers emitting less than the input: %v\n", candidates)
	}
	if *flagJSON != "" {
		if err := rep.SaveJSON(*flagJSON); err != nil {
			return err
		}
		klog.Infof("Report written to %s", *flagJSON)
	}
	return nil
}
