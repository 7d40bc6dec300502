// Command aerunner trains the input autoencoder of an experiment and keeps the
// checkpoint with the lowest validation reconstruction loss. The analyzer
// loads it with --ae.
package main

import (
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/dataset"
	"github.com/nitishmital/head-network-distillation/internal/models"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
	"github.com/nitishmital/head-network-distillation/internal/train"
)

var (
	flagData     = flag.String("data", "./resource/data/", "Data directory.")
	flagFormat   = flag.String("format", dataset.FormatFolder, "Data format: idx, folder or synthetic.")
	flagConfig   = flag.String("config", "", "Autoencoder experiment YAML file (required).")
	flagCkpt     = flag.String("ckpt", "./resource/ckpt/", "Checkpoint directory.")
	flagBatch    = flag.Int("bsize", 100, "Number of samples per batch.")
	flagEpochs   = flag.Int("epoch", 100, "Number of epochs to train.")
	flagLR       = flag.Float64("lr", 0.001, "Learning rate.")
	flagValid    = flag.Float64("vrate", 0.1, "Fraction of the training set held out for validation.")
	flagInterval = flag.Int("interval", 50, "Batches between training loss log lines (-v=1).")
	flagCType    = flag.String("ctype", "", "Input compression type: jpeg or resize.")
	flagCSize    = flag.String("csize", "", "Input compression size: JPEG quality or resize factor.")
	flagInit     = flag.Bool("init", false, "Ignore and overwrite an existing checkpoint.")
	flagEvaluate = flag.Bool("evaluate", false, "Skip training and only evaluate the checkpointed autoencoder.")
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

func run() error {
	cfg := must.M1(config.Load(*flagConfig))
	if cfg.Autoencoder == nil {
		return errors.Errorf("%s has no autoencoder section", *flagConfig)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bsize":
			cfg.Train.BatchSize = *flagBatch
		case "epoch":
			cfg.Train.Epochs = *flagEpochs
		case "lr":
			cfg.Train.LR = float32(*flagLR)
		case "vrate":
			cfg.Train.ValidRate = *flagValid
		case "interval":
			cfg.Train.LogInterval = *flagInterval
		}
	})
	if err := cfg.Train.Validate(); err != nil {
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
	trainSet, validSet, err := trainSet.Split(cfg.Train.ValidRate, rng)
	if err != nil {
		return err
	}

	ae, err := models.NewAutoencoder(cfg.Shape(), cfg.Autoencoder, rng)
	if err != nil {
		return err
	}
	optimizer, err := train.NewOptimizer(cfg.Train, ae.Parameters())
	if err != nil {
		return err
	}
	trainer := train.NewAutoencoderTrainer(ae, optimizer, train.CheckpointPath(*flagCkpt, cfg.ExperimentName), cfg.Train.LogInterval)
	start, err := trainer.Resume(*flagInit)
	if err != nil {
		return err
	}
	if !*flagEvaluate {
		if validSet.Len() == 0 {
			return errors.New("validation set is empty, raise --vrate")
		}
		if err := trainer.Fit(
			must.M1(dataset.NewLoader(trainSet, cfg.Train.BatchSize, true, rng)),
			must.M1(dataset.NewLoader(validSet, cfg.Train.BatchSize, false, nil)),
			start, cfg.Train.Epochs); err != nil {
			return err
		}
	}

	loss, err := train.EvaluateAutoencoder(ae, must.M1(dataset.NewLoader(testSet, cfg.Train.BatchSize, false, nil)))
	if err != nil {
		return err
	}
	inputBytes := cfg.Shape().NumElements() * tensor.Float32.Size()
	codeBytes := cfg.Autoencoder.Bottleneck * tensor.Float32.Size()
	fmt.Printf("%s: test reconstruction loss %.6f, input %s, code %s per sample (%.1f%%)\n",
		cfg.ExperimentName, loss, humanize.Bytes(uint64(inputBytes)), humanize.Bytes(uint64(codeBytes)),
		100*float64(codeBytes)/float64(inputBytes))
	return nil
}
