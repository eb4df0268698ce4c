package train

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"IndexPulse/internal/domain/models"
)

// SaveHistory persists the loss-history record as JSON.
func SaveHistory(path string, h *models.TrainingHistory) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("history dir: %w", err)
	}
	blob, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return os.WriteFile(path, blob, 0o644)
}

// LoadHistory reads a persisted loss-history record.
func LoadHistory(path string) (*models.TrainingHistory, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var h models.TrainingHistory
	if err := json.Unmarshal(blob, &h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &h, nil
}
