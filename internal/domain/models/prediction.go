package models

// IndexPrediction is the inference result returned to callers and relayed
// verbatim by the serving layer.
type IndexPrediction struct {
	Indices    []float64 `json:"indices"`
	IndexNames []string  `json:"index_names"`
	Confidence float64   `json:"confidence"`
	Timestamp  *string   `json:"timestamp"`
	Symbols    []string  `json:"symbols,omitempty"`
	ModelPath  string    `json:"model_path,omitempty"`
}

// ModelInfo describes the served model and whether trained weights back it.
type ModelInfo struct {
	ModelPath     string `json:"model_path"`
	Device        string `json:"device"`
	Architecture  string `json:"architecture"`
	InputFeatures int    `json:"input_features"`
	HiddenSize    int    `json:"hidden_size"`
	NumLayers     int    `json:"num_layers"`
	OutputSize    int    `json:"output_size"`
	ModelExists   bool   `json:"model_exists"`
}

// TrainingHistory is the persisted loss record of one training run.
type TrainingHistory struct {
	TrainLosses []float64 `json:"train_losses"`
	ValLosses   []float64 `json:"val_losses"`
	BestLoss    float64   `json:"best_loss"`
	FinalEpoch  int       `json:"final_epoch"`
	Timestamp   string    `json:"timestamp"`
}

// PredictRequest is the serving-layer request body for index prediction.
type PredictRequest struct {
	Symbols  []string `json:"symbols" validate:"omitempty,max=50,dive,required"`
	Lookback int      `json:"lookback" default:"200" validate:"gte=1,lte=10000"`
}

// TrainRequest asks for an asynchronous training run over a bar range.
// From and To are RFC3339; empty values default to the last six months.
type TrainRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,max=50,dive,required"`
	From    string   `json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To      string   `json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Storage     string `json:"storage"`
	Version     string `json:"version"`
}
