package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"IndexPulse/internal/domain/models"
	domrepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/services/dataset"
	seqmodel "IndexPulse/internal/services/model"
	"IndexPulse/internal/services/train"
	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/queue"
	"IndexPulse/pkg/util"
)

// TrainingService runs the full training pipeline: load a bar range,
// augment, window, normalize, fit the model, and persist checkpoints
// plus the fitted scaler.
type TrainingService struct {
	data     *MarketData
	prep     *dataset.Preprocessor
	modelCfg seqmodel.Config
	trainCfg train.Config
	l        *applogger.Logger
	metrics  domrepo.Metrics
}

func NewTrainingService(data *MarketData, prep *dataset.Preprocessor, modelCfg seqmodel.Config, trainCfg train.Config, l *applogger.Logger, metrics domrepo.Metrics) *TrainingService {
	return &TrainingService{
		data:     data,
		prep:     prep,
		modelCfg: modelCfg,
		trainCfg: trainCfg,
		l:        l,
		metrics:  metrics,
	}
}

// RunTraining trains on a stored bar range and returns the persisted
// history.
func (s *TrainingService) RunTraining(ctx context.Context, symbols []string, from, to time.Time) (*models.TrainingHistory, error) {
	table, err := s.data.TrainingTable(ctx, symbols, from, to)
	if err != nil {
		return nil, fmt.Errorf("training table: %w", err)
	}
	return s.TrainFromTable(table)
}

// TrainFromTable trains on an already-augmented table. Used directly by
// the training CLI for synthetic runs.
func (s *TrainingService) TrainFromTable(table *models.Table) (*models.TrainingHistory, error) {
	prepared, err := s.prep.PrepareData(table)
	if err != nil {
		return nil, fmt.Errorf("prepare data: %w", err)
	}

	cfg := s.modelCfg
	cfg.InputFeatures = len(prepared.FeatureNames)

	rng := rand.New(rand.NewSource(rand.Int63()))
	net := seqmodel.New(cfg, rng)
	trainer := train.New(s.trainCfg, net, rng, s.l, s.metrics)

	history, err := trainer.Train(prepared)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	scalerPath := filepath.Join(s.trainCfg.CheckpointDir, train.ScalerFile)
	if err := s.prep.Normalizer().SaveFile(scalerPath); err != nil {
		if s.l != nil {
			s.l.Warn("scaler save failed", applogger.Error(err))
		}
	}
	return history, nil
}

// TrainJobType identifies queued training requests.
const TrainJobType = "training.run"

// trainJobPayload is the queued request schema.
type trainJobPayload struct {
	Symbols []string `json:"symbols"`
	From    string   `json:"from"`
	To      string   `json:"to"`
}

// TrainJob adapts TrainingService to the job queue so training runs can
// be requested over the API without blocking a request handler.
type TrainJob struct {
	svc *TrainingService
	l   *applogger.Logger
}

func NewTrainJob(svc *TrainingService, l *applogger.Logger) *TrainJob {
	return &TrainJob{svc: svc, l: l}
}

func (j *TrainJob) Name() string { return "index-model-training" }
func (j *TrainJob) Type() string { return TrainJobType }

func (j *TrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[trainJobPayload](payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	to := util.ParseTimeDefault(p.To, time.Now().UTC())
	from := util.ParseTimeDefault(p.From, to.AddDate(0, -6, 0))

	history, err := j.svc.RunTraining(ctx, p.Symbols, from, to)
	if err != nil {
		return err
	}
	if j.l != nil {
		j.l.Info("training job complete",
			applogger.Int("final_epoch", history.FinalEpoch),
			applogger.Any("best_loss", history.BestLoss),
		)
	}
	return nil
}
