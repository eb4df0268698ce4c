package model

import "math"

// PlateauScheduler halves the learning rate whenever validation loss
// fails to improve for a patience window, monitored in minimize mode.
// This patience is distinct from the trainer's early-stopping patience.
type PlateauScheduler struct {
	opt      *Adam
	factor   float64
	patience int

	best float64
	wait int
}

// NewPlateauScheduler creates a scheduler over the given optimizer.
func NewPlateauScheduler(opt *Adam, factor float64, patience int) *PlateauScheduler {
	return &PlateauScheduler{
		opt:      opt,
		factor:   factor,
		patience: patience,
		best:     math.Inf(1),
	}
}

// Step records one epoch's validation loss and reduces the learning rate
// once the bad-epoch count exceeds patience.
func (s *PlateauScheduler) Step(valLoss float64) {
	if valLoss < s.best {
		s.best = valLoss
		s.wait = 0
		return
	}
	s.wait++
	if s.wait > s.patience {
		s.opt.SetLR(s.opt.LR() * s.factor)
		s.wait = 0
	}
}

// SchedulerState is the serializable scheduler state.
type SchedulerState struct {
	Best     float64 `json:"best"`
	Wait     int     `json:"wait"`
	Factor   float64 `json:"factor"`
	Patience int     `json:"patience"`
}

// State captures the scheduler state for checkpointing.
func (s *PlateauScheduler) State() SchedulerState {
	return SchedulerState{Best: s.best, Wait: s.wait, Factor: s.factor, Patience: s.patience}
}

// LoadState restores scheduler state from a checkpoint.
func (s *PlateauScheduler) LoadState(st SchedulerState) {
	s.best = st.Best
	s.wait = st.Wait
	if st.Factor > 0 {
		s.factor = st.Factor
	}
	if st.Patience > 0 {
		s.patience = st.Patience
	}
}
