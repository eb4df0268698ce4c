package train

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"IndexPulse/internal/domain/models"
	domrepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/services/dataset"
	seqmodel "IndexPulse/internal/services/model"
	applogger "IndexPulse/pkg/logger"
)

// Checkpoint filenames written under the configured checkpoint directory.
const (
	BestCheckpointFile  = "best_model.json"
	FinalCheckpointFile = "final_model.json"
	HistoryFile         = "training_history.json"
	ScalerFile          = "scalers.json"
)

// EpochCheckpointFile returns the periodic checkpoint name for an epoch.
func EpochCheckpointFile(epoch int) string {
	return fmt.Sprintf("checkpoint_epoch_%d.json", epoch)
}

// Config holds training hyperparameters.
type Config struct {
	LearningRate          float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	Epochs                int     `yaml:"epochs" default:"100" validate:"gte=1"`
	BatchSize             int     `yaml:"batch_size" default:"32" validate:"gte=1"`
	EarlyStoppingPatience int     `yaml:"early_stopping_patience" default:"10" validate:"gte=1"`
	CheckpointDir         string  `yaml:"checkpoint_dir" default:"checkpoints"`
}

// Trainer runs the epoch loop: shuffled training batches with gradient
// clipping and Adam updates, a validation pass, plateau learning-rate
// reduction, best-checkpoint tracking with early stopping, periodic and
// final checkpoints, and history persistence. Single-owner: not safe for
// concurrent use.
type Trainer struct {
	cfg     Config
	net     *seqmodel.Network
	opt     *seqmodel.Adam
	sched   *seqmodel.PlateauScheduler
	rng     *rand.Rand
	l       *applogger.Logger
	metrics domrepo.Metrics

	trainLosses []float64
	valLosses   []float64
	bestLoss    float64
	startEpoch  int
}

// New creates a trainer over a network.
func New(cfg Config, net *seqmodel.Network, rng *rand.Rand, l *applogger.Logger, metrics domrepo.Metrics) *Trainer {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	opt := seqmodel.NewAdam(cfg.LearningRate)
	return &Trainer{
		cfg:      cfg,
		net:      net,
		opt:      opt,
		sched:    seqmodel.NewPlateauScheduler(opt, 0.5, 5),
		rng:      rng,
		l:        l,
		metrics:  metrics,
		bestLoss: math.Inf(1),
	}
}

// Train runs the full loop over prepared data and returns the history
// that was persisted alongside the checkpoints.
func (t *Trainer) Train(data *dataset.Prepared) (*models.TrainingHistory, error) {
	patience := 0
	finalEpoch := t.startEpoch

	for epoch := t.startEpoch + 1; epoch <= t.cfg.Epochs; epoch++ {
		trainLoss := t.trainEpoch(data.XTrain, data.YTrain)
		valLoss := t.validate(data.XVal, data.YVal)
		if math.IsNaN(valLoss) {
			valLoss = trainLoss
		}
		t.trainLosses = append(t.trainLosses, trainLoss)
		t.valLosses = append(t.valLosses, valLoss)
		finalEpoch = epoch

		t.sched.Step(valLoss)
		if t.metrics != nil {
			t.metrics.RecordEpoch(epoch, trainLoss, valLoss)
		}
		if t.l != nil {
			t.l.Info("epoch complete",
				applogger.Int("epoch", epoch),
				applogger.Any("train_loss", trainLoss),
				applogger.Any("val_loss", valLoss),
				applogger.Any("lr", t.opt.LR()),
			)
		}

		if valLoss < t.bestLoss {
			t.bestLoss = valLoss
			patience = 0
			if err := t.saveCheckpoint(BestCheckpointFile, epoch); err != nil {
				return nil, err
			}
		} else {
			patience++
			if patience >= t.cfg.EarlyStoppingPatience {
				if t.l != nil {
					t.l.Info("early stopping", applogger.Int("epoch", epoch))
				}
				break
			}
		}

		if epoch%10 == 0 {
			if err := t.saveCheckpoint(EpochCheckpointFile(epoch), epoch); err != nil {
				return nil, err
			}
		}
	}

	if err := t.saveCheckpoint(FinalCheckpointFile, finalEpoch); err != nil {
		return nil, err
	}
	history := &models.TrainingHistory{
		TrainLosses: append([]float64(nil), t.trainLosses...),
		ValLosses:   append([]float64(nil), t.valLosses...),
		BestLoss:    t.bestLoss,
		FinalEpoch:  finalEpoch,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if err := SaveHistory(filepath.Join(t.cfg.CheckpointDir, HistoryFile), history); err != nil {
		return nil, err
	}
	return history, nil
}

// LoadCheckpoint restores trainer and model state to resume a run.
func (t *Trainer) LoadCheckpoint(path string) error {
	cp, err := seqmodel.LoadCheckpoint(path)
	if err != nil {
		return err
	}
	if err := t.net.LoadStateDict(cp.Model); err != nil {
		return err
	}
	t.opt.LoadState(cp.Optimizer)
	t.sched.LoadState(cp.Scheduler)
	t.trainLosses = append([]float64(nil), cp.TrainLosses...)
	t.valLosses = append([]float64(nil), cp.ValLosses...)
	t.bestLoss = cp.BestLoss
	t.startEpoch = cp.Epoch
	return nil
}

func (t *Trainer) trainEpoch(x [][][]float64, y [][]float64) float64 {
	idx := t.rng.Perm(len(x))
	total := 0.0
	batches := 0
	for start := 0; start < len(idx); start += t.cfg.BatchSize {
		end := start + t.cfg.BatchSize
		if end > len(idx) {
			end = len(idx)
		}
		xs, targets := gatherBatch(x, y, idx[start:end])

		preds, _, cache := t.net.Forward(xs, nil, true)
		loss, grad := seqmodel.MSELoss(preds, targets)
		t.net.ZeroGrad()
		t.net.Backward(cache, grad)
		seqmodel.ClipGradNorm(t.net.Params(), 1.0)
		t.opt.Step(t.net.Params())

		total += loss
		batches++
	}
	if batches == 0 {
		return math.NaN()
	}
	return total / float64(batches)
}

func (t *Trainer) validate(x [][][]float64, y [][]float64) float64 {
	total := 0.0
	batches := 0
	for start := 0; start < len(x); start += t.cfg.BatchSize {
		end := start + t.cfg.BatchSize
		if end > len(x) {
			end = len(x)
		}
		idx := make([]int, end-start)
		for i := range idx {
			idx[i] = start + i
		}
		xs, targets := gatherBatch(x, y, idx)

		preds, _, _ := t.net.Forward(xs, nil, false)
		loss, _ := seqmodel.MSELoss(preds, targets)
		total += loss
		batches++
	}
	if batches == 0 {
		return math.NaN()
	}
	return total / float64(batches)
}

func (t *Trainer) saveCheckpoint(name string, epoch int) error {
	cp := &seqmodel.Checkpoint{
		Epoch:       epoch,
		Config:      t.net.Cfg(),
		Model:       t.net.StateDict(),
		Optimizer:   t.opt.State(),
		Scheduler:   t.sched.State(),
		TrainLosses: t.trainLosses,
		ValLosses:   t.valLosses,
		BestLoss:    t.bestLoss,
	}
	return seqmodel.SaveCheckpoint(filepath.Join(t.cfg.CheckpointDir, name), cp)
}

// gatherBatch assembles one batch in the network's time-major layout.
func gatherBatch(x [][][]float64, y [][]float64, idx []int) ([]*mat.Dense, *mat.Dense) {
	bx := make([][][]float64, len(idx))
	for i, j := range idx {
		bx[i] = x[j]
	}
	xs := seqmodel.BatchToInputs(bx)

	cols := len(y[idx[0]])
	targets := mat.NewDense(len(idx), cols, nil)
	for i, j := range idx {
		for k, v := range y[j] {
			targets.Set(i, k, v)
		}
	}
	return xs, targets
}
