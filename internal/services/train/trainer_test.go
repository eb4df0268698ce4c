package train

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"IndexPulse/internal/services/dataset"
	seqmodel "IndexPulse/internal/services/model"
)

func preparedFixture(rng *rand.Rand, trainN, valN, steps, features, outputs int) *dataset.Prepared {
	mk := func(n int) ([][][]float64, [][]float64) {
		x := make([][][]float64, n)
		y := make([][]float64, n)
		for i := range x {
			w := make([][]float64, steps)
			for t := range w {
				row := make([]float64, features)
				for j := range row {
					row[j] = rng.NormFloat64()
				}
				w[t] = row
			}
			x[i] = w
			label := rng.Float64()
			y[i] = make([]float64, outputs)
			for j := range y[i] {
				y[i][j] = label
			}
		}
		return x, y
	}
	xt, yt := mk(trainN)
	xv, yv := mk(valN)
	return &dataset.Prepared{XTrain: xt, YTrain: yt, XVal: xv, YVal: yv}
}

func newTestTrainer(t *testing.T, cfg Config) (*Trainer, *seqmodel.Network) {
	t.Helper()
	rng := rand.New(rand.NewSource(21))
	net := seqmodel.New(seqmodel.Config{
		InputFeatures: 4,
		HiddenSize:    8,
		NumLayers:     1,
		OutputSize:    2,
		Dropout:       0.1,
		Heads:         2,
	}, rng)
	return New(cfg, net, rng, nil, nil), net
}

func TestTrainWritesCheckpointsAndHistory(t *testing.T) {
	dir := t.TempDir()
	trainer, _ := newTestTrainer(t, Config{
		LearningRate:          0.001,
		Epochs:                2,
		BatchSize:             4,
		EarlyStoppingPatience: 10,
		CheckpointDir:         dir,
	})

	rng := rand.New(rand.NewSource(22))
	history, err := trainer.Train(preparedFixture(rng, 8, 4, 6, 4, 2))
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	if len(history.TrainLosses) != 2 || len(history.ValLosses) != 2 {
		t.Fatalf("expected 2 epochs of losses, got %d/%d", len(history.TrainLosses), len(history.ValLosses))
	}
	if history.FinalEpoch != 2 {
		t.Fatalf("expected final epoch 2, got %d", history.FinalEpoch)
	}

	for _, name := range []string{BestCheckpointFile, FinalCheckpointFile, HistoryFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestTrainEarlyStops(t *testing.T) {
	dir := t.TempDir()
	trainer, _ := newTestTrainer(t, Config{
		LearningRate:          0.01,
		Epochs:                200,
		BatchSize:             4,
		EarlyStoppingPatience: 3,
		CheckpointDir:         dir,
	})

	// validation labels contradict training labels, so fitting the train
	// set drives validation loss up and early stopping must trigger
	rng := rand.New(rand.NewSource(23))
	data := preparedFixture(rng, 8, 4, 6, 4, 2)
	for i := range data.YTrain {
		for j := range data.YTrain[i] {
			data.YTrain[i][j] = 0
		}
	}
	for i := range data.YVal {
		for j := range data.YVal[i] {
			data.YVal[i][j] = 1
		}
	}

	history, err := trainer.Train(data)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if history.FinalEpoch >= 200 {
		t.Fatalf("expected early stop well before epoch 200, got %d", history.FinalEpoch)
	}
	if len(history.TrainLosses) != history.FinalEpoch {
		t.Fatalf("history length %d != final epoch %d", len(history.TrainLosses), history.FinalEpoch)
	}
}

func TestTrainerResumeFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		LearningRate:          0.001,
		Epochs:                2,
		BatchSize:             4,
		EarlyStoppingPatience: 10,
		CheckpointDir:         dir,
	}
	trainer, _ := newTestTrainer(t, cfg)
	rng := rand.New(rand.NewSource(24))
	if _, err := trainer.Train(preparedFixture(rng, 8, 4, 6, 4, 2)); err != nil {
		t.Fatalf("train: %v", err)
	}

	resumed, _ := newTestTrainer(t, cfg)
	if err := resumed.LoadCheckpoint(filepath.Join(dir, FinalCheckpointFile)); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.startEpoch != 2 {
		t.Fatalf("expected resume at epoch 2, got %d", resumed.startEpoch)
	}
	if len(resumed.trainLosses) != 2 {
		t.Fatalf("expected restored loss history, got %d entries", len(resumed.trainLosses))
	}
}

func TestSaveLoadHistory(t *testing.T) {
	dir := t.TempDir()
	trainer, _ := newTestTrainer(t, Config{
		LearningRate:          0.001,
		Epochs:                1,
		BatchSize:             4,
		EarlyStoppingPatience: 10,
		CheckpointDir:         dir,
	})
	rng := rand.New(rand.NewSource(25))
	want, err := trainer.Train(preparedFixture(rng, 8, 4, 6, 4, 2))
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	got, err := LoadHistory(filepath.Join(dir, HistoryFile))
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if got.FinalEpoch != want.FinalEpoch || got.BestLoss != want.BestLoss {
		t.Fatalf("persisted history mismatch: %+v vs %+v", got, want)
	}
}
