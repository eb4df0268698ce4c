package models

import (
	"fmt"
	"time"
)

// Canonical column names used across the pipeline.
const (
	ColOpen           = "Open"
	ColHigh           = "High"
	ColLow            = "Low"
	ColClose          = "Close"
	ColVolume         = "Volume"
	ColMA7            = "MA_7"
	ColMA30           = "MA_30"
	ColEMA12          = "EMA_12"
	ColEMA26          = "EMA_26"
	ColMACD           = "MACD"
	ColRSI            = "RSI"
	ColVolatility     = "Volatility"
	ColPriceChangePct = "Price_Change_Pct"
	ColSentiment      = "sentiment_score"
)

// IndicatorColumns lists derived indicator columns in canonical order.
var IndicatorColumns = []string{
	ColMA7, ColMA30, ColEMA12, ColEMA26,
	ColMACD, ColRSI, ColVolatility, ColPriceChangePct,
}

// Table is a column-oriented time series of feature rows. Rows carry a
// symbol label and an optional timestamp; numeric columns are stored by
// name and share the same row count.
type Table struct {
	Symbols []string
	Times   []time.Time

	order []string
	cols  map[string][]float64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{cols: make(map[string][]float64)}
}

// TableFromBars builds an OHLCV table from ordered bars.
func TableFromBars(bars []MarketBar) *Table {
	t := NewTable()
	n := len(bars)
	t.Symbols = make([]string, n)
	t.Times = make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	for i, b := range bars {
		t.Symbols[i] = b.Symbol
		t.Times[i] = b.Time
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		cls[i] = b.Close
		vol[i] = b.Volume
	}
	t.SetColumn(ColOpen, open)
	t.SetColumn(ColHigh, high)
	t.SetColumn(ColLow, low)
	t.SetColumn(ColClose, cls)
	t.SetColumn(ColVolume, vol)
	return t
}

// Len returns the row count.
func (t *Table) Len() int {
	if len(t.Symbols) > 0 {
		return len(t.Symbols)
	}
	for _, name := range t.order {
		return len(t.cols[name])
	}
	return 0
}

// Columns returns column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the values of a column, or nil if absent. The returned
// slice is the backing storage; callers that mutate it mutate the table.
func (t *Table) Column(name string) []float64 {
	return t.cols[name]
}

// SetColumn adds or replaces a column.
func (t *Table) SetColumn(name string, values []float64) {
	if _, ok := t.cols[name]; !ok {
		t.order = append(t.order, name)
	}
	t.cols[name] = values
}

// Matrix extracts the named columns as row-major rows.
func (t *Table) Matrix(names []string) ([][]float64, error) {
	n := t.Len()
	cols := make([][]float64, len(names))
	for j, name := range names {
		c, ok := t.cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q not in table", name)
		}
		cols[j] = c
	}
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// Tail returns a view-like copy of the last n rows.
func (t *Table) Tail(n int) *Table {
	total := t.Len()
	if n >= total {
		return t
	}
	out := NewTable()
	if len(t.Symbols) > 0 {
		out.Symbols = t.Symbols[total-n:]
	}
	if len(t.Times) > 0 {
		out.Times = t.Times[total-n:]
	}
	for _, name := range t.order {
		out.SetColumn(name, t.cols[name][total-n:])
	}
	return out
}
