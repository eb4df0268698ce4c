package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"IndexPulse/internal/domain/errs"
)

// Tensor is the serialized form of a weight matrix.
type Tensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func tensorFrom(m *mat.Dense) Tensor {
	r, c := m.Dims()
	data := make([]float64, r*c)
	copy(data, m.RawMatrix().Data)
	return Tensor{Rows: r, Cols: c, Data: data}
}

func (t Tensor) dense() *mat.Dense {
	return mat.NewDense(t.Rows, t.Cols, t.Data)
}

// State is the serialized model state: every parameter plus the batch
// norm running statistics.
type State struct {
	Params      map[string]Tensor `json:"params"`
	RunningMean []float64         `json:"bn_running_mean"`
	RunningVar  []float64         `json:"bn_running_var"`
}

// StateDict captures the full model state.
func (n *Network) StateDict() State {
	st := State{Params: make(map[string]Tensor)}
	for _, p := range n.Params() {
		st.Params[p.Name] = tensorFrom(p.W)
	}
	st.RunningMean = append([]float64(nil), n.bn.runningMean...)
	st.RunningVar = append([]float64(nil), n.bn.runningVar...)
	return st
}

// LoadStateDict restores model state; every current parameter must be
// present with matching dimensions.
func (n *Network) LoadStateDict(st State) error {
	for _, p := range n.Params() {
		t, ok := st.Params[p.Name]
		if !ok {
			return fmt.Errorf("checkpoint missing parameter %q", p.Name)
		}
		r, c := p.W.Dims()
		if t.Rows != r || t.Cols != c {
			return fmt.Errorf("parameter %q has shape %dx%d, checkpoint has %dx%d", p.Name, r, c, t.Rows, t.Cols)
		}
		p.W.Copy(t.dense())
	}
	if len(st.RunningMean) == len(n.bn.runningMean) {
		copy(n.bn.runningMean, st.RunningMean)
	}
	if len(st.RunningVar) == len(n.bn.runningVar) {
		copy(n.bn.runningVar, st.RunningVar)
	}
	return nil
}

// Checkpoint bundles everything needed to resume training or serve:
// model parameters, optimizer and scheduler state, epoch counter, loss
// history, and best loss so far.
type Checkpoint struct {
	Epoch       int            `json:"epoch"`
	Config      Config         `json:"config"`
	Model       State          `json:"model_state"`
	Optimizer   AdamState      `json:"optimizer_state"`
	Scheduler   SchedulerState `json:"scheduler_state"`
	TrainLosses []float64      `json:"train_losses"`
	ValLosses   []float64      `json:"val_losses"`
	BestLoss    float64        `json:"best_loss"`
}

// SaveCheckpoint writes a checkpoint as JSON, creating parent directories
// as needed.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}
	blob, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint; an absent file is a
// CheckpointNotFoundError.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errs.CheckpointNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(blob, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}
