package features

import (
	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	applogger "IndexPulse/pkg/logger"
)

// logicalColumns maps configured logical feature names to physical columns.
// market_cap has no physical column in OHLCV data and proxies to Close.
var logicalColumns = map[string]string{
	"open":            models.ColOpen,
	"high":            models.ColHigh,
	"low":             models.ColLow,
	"close":           models.ColClose,
	"volume":          models.ColVolume,
	"market_cap":      models.ColClose,
	"sentiment_score": models.ColSentiment,
}

// Selector resolves configured logical feature names to table columns.
type Selector struct {
	l *applogger.Logger
}

// NewSelector creates a feature selector.
func NewSelector(l *applogger.Logger) *Selector {
	return &Selector{l: l}
}

// Select maps logical names to physical columns, drops names with no
// usable column (warned, not fatal), and appends indicator columns present
// in the table that were not already selected. An empty result is an
// InvalidInputError: nothing to train or infer on.
func (s *Selector) Select(t *models.Table, logical []string) ([]string, error) {
	selected := make([]string, 0, len(logical)+len(models.IndicatorColumns))
	seen := make(map[string]bool)

	for _, name := range logical {
		col, ok := logicalColumns[name]
		if !ok && t.HasColumn(name) {
			col, ok = name, true
		}
		if !ok || !t.HasColumn(col) {
			if s.l != nil {
				s.l.Warn("feature not available, dropping", applogger.String("feature", name))
			}
			continue
		}
		if !seen[col] {
			selected = append(selected, col)
			seen[col] = true
		}
	}

	for _, col := range models.IndicatorColumns {
		if t.HasColumn(col) && !seen[col] {
			selected = append(selected, col)
			seen[col] = true
		}
	}

	if len(selected) == 0 {
		return nil, &errs.InvalidInputError{Reason: "no usable features selected"}
	}
	return selected, nil
}

// PlannedColumns resolves logical names to the column set Select would
// produce on a fully augmented table. Used to size the model before any
// data is seen.
func PlannedColumns(logical []string) []string {
	selected := make([]string, 0, len(logical)+len(models.IndicatorColumns))
	seen := make(map[string]bool)

	for _, name := range logical {
		col, ok := logicalColumns[name]
		if !ok {
			col = name
		}
		if !seen[col] {
			selected = append(selected, col)
			seen[col] = true
		}
	}
	for _, col := range models.IndicatorColumns {
		if !seen[col] {
			selected = append(selected, col)
			seen[col] = true
		}
	}
	return selected
}
