package usecase

import (
	"context"
	"fmt"
	"time"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	domrepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/services/features"
	"IndexPulse/internal/services/predict"
	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/util"
)

// MarketData assembles augmented feature tables from stored bars. It is
// the bridge between the bar store and the model pipeline: raw OHLCV in,
// indicator-enriched table out.
type MarketData struct {
	store    domrepo.BarStore
	engine   *features.Engine
	tf       domrepo.Timeframe
	symbols  []string
	lookback int
	l        *applogger.Logger
}

// NewMarketData creates the usecase. symbols and lookback act as
// defaults when a caller passes none.
func NewMarketData(store domrepo.BarStore, engine *features.Engine, tf domrepo.Timeframe, symbols []string, lookback int, l *applogger.Logger) *MarketData {
	if lookback <= 0 {
		lookback = 1000
	}
	return &MarketData{
		store:    store,
		engine:   engine,
		tf:       tf,
		symbols:  symbols,
		lookback: lookback,
		l:        l,
	}
}

// FeatureTable loads the most recent bars for the requested symbols and
// augments them with indicators. Symbols with no stored bars are skipped
// with a warning; all symbols empty is a NoDataError.
func (m *MarketData) FeatureTable(ctx context.Context, symbols []string) (*models.Table, error) {
	return m.featureTable(ctx, symbols, m.lookback)
}

// WithLookback binds a per-request lookback to the usecase, falling back
// to the configured default when n is not positive.
func (m *MarketData) WithLookback(n int) predict.TableProvider {
	if n <= 0 {
		n = m.lookback
	}
	return lookbackProvider{m: m, n: n}
}

type lookbackProvider struct {
	m *MarketData
	n int
}

func (p lookbackProvider) FeatureTable(ctx context.Context, symbols []string) (*models.Table, error) {
	return p.m.featureTable(ctx, symbols, p.n)
}

func (m *MarketData) featureTable(ctx context.Context, symbols []string, lookback int) (*models.Table, error) {
	if len(symbols) == 0 {
		symbols = m.symbols
	}
	if len(symbols) == 0 {
		return nil, &errs.InvalidInputError{Reason: "no symbols configured or requested"}
	}

	var all []models.MarketBar
	for _, sym := range symbols {
		bars, err := m.store.GetLatestNBars(ctx, sym, lookback, m.tf)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", sym, err)
		}
		if len(bars) == 0 {
			if m.l != nil {
				m.l.Warn("no bars for symbol", applogger.String("symbol", sym))
			}
			continue
		}
		all = append(all, bars...)
	}
	if len(all) == 0 {
		return nil, &errs.NoDataError{Symbols: symbols}
	}

	t := models.TableFromBars(all)
	return m.engine.Augment(t), nil
}

// TrainingTable loads a bar range for training and augments it. The
// range is aligned to timeframe boundaries first.
func (m *MarketData) TrainingTable(ctx context.Context, symbols []string, from, to time.Time) (*models.Table, error) {
	from, to = util.AlignFromTo(from, to, string(m.tf))
	if len(symbols) == 0 {
		symbols = m.symbols
	}
	if len(symbols) == 0 {
		return nil, &errs.InvalidInputError{Reason: "no symbols configured or requested"}
	}

	var all []models.MarketBar
	for _, sym := range symbols {
		bars, err := m.store.GetBars(ctx, sym, from, to, m.tf)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", sym, err)
		}
		all = append(all, bars...)
	}
	if len(all) == 0 {
		return nil, &errs.NoDataError{Symbols: symbols}
	}

	t := models.TableFromBars(all)
	return m.engine.Augment(t), nil
}

// Health pings the underlying store.
func (m *MarketData) Health(ctx context.Context) error {
	return m.store.Health(ctx)
}
