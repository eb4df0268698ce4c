package features

import (
	"math"
	"math/rand"

	"IndexPulse/internal/domain/models"
	applogger "IndexPulse/pkg/logger"
)

// SentimentSource supplies a per-row sentiment score for a feature table.
// The real news-sentiment integration lives behind this seam; the built-in
// placeholder emits noise (no source) or a constant (source configured but
// unimplemented upstream).
type SentimentSource interface {
	Scores(t *models.Table) []float64
}

// Engine derives technical indicator columns from raw OHLCV rows.
// All rolling computations are grouped by symbol so no history leaks
// across symbols.
type Engine struct {
	sentiment SentimentSource
	rng       *rand.Rand
	l         *applogger.Logger
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithSentimentSource sets an external sentiment source.
func WithSentimentSource(s SentimentSource) EngineOption {
	return func(e *Engine) { e.sentiment = s }
}

// WithRand sets the random source used for the placeholder sentiment noise.
func WithRand(r *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = r }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) EngineOption {
	return func(e *Engine) { e.l = l }
}

// NewEngine creates a feature engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{rng: rand.New(rand.NewSource(rand.Int63()))}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Augment derives indicator and sentiment columns in place and resolves
// short-history gaps by forward-fill then zero-fill. An empty table is
// returned unchanged.
func (e *Engine) Augment(t *models.Table) *models.Table {
	if t.Len() == 0 {
		return t
	}
	e.AddIndicators(t)
	e.AddSentiment(t)
	FillMissing(t)
	if e.l != nil {
		e.l.Debug("features augmented",
			applogger.Int("rows", t.Len()),
			applogger.Int("columns", len(t.Columns())),
		)
	}
	return t
}

// AddIndicators computes MA_7, MA_30, EMA_12, EMA_26, MACD, RSI,
// Volatility, and Price_Change_Pct per symbol group. Early rows that a
// window cannot cover stay NaN until FillMissing runs.
func (e *Engine) AddIndicators(t *models.Table) *models.Table {
	if t.Len() == 0 {
		return t
	}
	n := t.Len()
	cls := t.Column(models.ColClose)

	out := make(map[string][]float64, len(models.IndicatorColumns))
	for _, name := range models.IndicatorColumns {
		out[name] = make([]float64, n)
	}

	for _, idx := range groupBySymbol(t.Symbols, n) {
		c := gather(cls, idx)
		ema12 := EMA(c, 12)
		ema26 := EMA(c, 26)
		scatter(out[models.ColMA7], idx, RollingMean(c, 7, 1))
		scatter(out[models.ColMA30], idx, RollingMean(c, 30, 1))
		scatter(out[models.ColEMA12], idx, ema12)
		scatter(out[models.ColEMA26], idx, ema26)
		macd := make([]float64, len(c))
		for i := range macd {
			macd[i] = ema12[i] - ema26[i]
		}
		scatter(out[models.ColMACD], idx, macd)
		scatter(out[models.ColRSI], idx, RSI(c, 14))
		scatter(out[models.ColVolatility], idx, RollingStd(c, 30, 1))
		scatter(out[models.ColPriceChangePct], idx, PctChange(c))
	}

	for _, name := range models.IndicatorColumns {
		t.SetColumn(name, out[name])
	}
	return t
}

// AddSentiment attaches the placeholder sentiment column. Without an
// external source, scores are pseudo-random on [-1, 1]; with one, the
// source decides (the built-in constant source returns 0.0 per row).
func (e *Engine) AddSentiment(t *models.Table) *models.Table {
	if t.Len() == 0 {
		return t
	}
	var scores []float64
	if e.sentiment != nil {
		scores = e.sentiment.Scores(t)
	} else {
		scores = make([]float64, t.Len())
		for i := range scores {
			scores[i] = e.rng.Float64()*2 - 1
		}
	}
	t.SetColumn(models.ColSentiment, scores)
	return t
}

// FillMissing forward-fills NaN values column by column over the whole
// table, then zero-fills what remains. The fill runs globally, not per
// symbol, so the first rows of a later symbol can inherit the previous
// symbol's last value.
func FillMissing(t *models.Table) {
	for _, name := range t.Columns() {
		col := t.Column(name)
		last := math.NaN()
		for i, v := range col {
			if math.IsNaN(v) {
				if math.IsNaN(last) {
					col[i] = 0
				} else {
					col[i] = last
				}
			} else {
				last = v
			}
		}
	}
}

// ConstantSentiment returns the same score for every row. This is the
// acknowledged stub for a configured-but-unintegrated sentiment feed.
type ConstantSentiment struct {
	Value float64
}

func (s ConstantSentiment) Scores(t *models.Table) []float64 {
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = s.Value
	}
	return out
}

// groupBySymbol returns row-index groups in first-seen symbol order.
// A table with no symbol labels is treated as a single group.
func groupBySymbol(symbols []string, n int) [][]int {
	if len(symbols) == 0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return [][]int{idx}
	}
	order := make([]string, 0, 4)
	groups := make(map[string][]int)
	for i, s := range symbols {
		if _, ok := groups[s]; !ok {
			order = append(order, s)
		}
		groups[s] = append(groups[s], i)
	}
	out := make([][]int, 0, len(order))
	for _, s := range order {
		out = append(out, groups[s])
	}
	return out
}

func gather(src []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

func scatter(dst []float64, idx []int, vals []float64) {
	for i, j := range idx {
		dst[j] = vals[i]
	}
}
