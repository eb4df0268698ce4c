package usecase

import (
	"context"
	"strconv"
	"testing"
	"time"

	"IndexPulse/internal/domain/models"
)

type recordingMetrics struct {
	errors    []string
	sent      int
	latencies int
}

func (m *recordingMetrics) RecordMessageSent(_, _ string)     { m.sent++ }
func (m *recordingMetrics) RecordError(kind string)           { m.errors = append(m.errors, kind) }
func (m *recordingMetrics) RecordLatency(_ string, _ float64) { m.latencies++ }
func (m *recordingMetrics) RecordPrediction(_ float64)        {}
func (m *recordingMetrics) RecordEpoch(_ int, _, _ float64)   {}

func TestKafkaBarsHandlerInsertsBar(t *testing.T) {
	store := &fakeBarStore{bars: make(map[string][]models.MarketBar)}
	metrics := &recordingMetrics{}
	h := NewKafkaBarsHandler("market.bars", store, metrics)

	ts := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC).Unix()
	msg := []byte(`{"symbol":"BTC","t":` + itoa(ts) + `,"o":100,"h":101,"l":99,"c":100.5,"v":12.5}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	bars := store.bars["BTC"]
	if len(bars) != 1 {
		t.Fatalf("expected one bar stored, got %d", len(bars))
	}
	if bars[0].Close != 100.5 || !bars[0].Time.Equal(time.Unix(ts, 0).UTC()) {
		t.Fatalf("unexpected bar %+v", bars[0])
	}
	if metrics.sent != 1 {
		t.Fatalf("expected one sent metric, got %d", metrics.sent)
	}
}

func TestKafkaBarsHandlerMillisecondTimestamps(t *testing.T) {
	store := &fakeBarStore{bars: make(map[string][]models.MarketBar)}
	h := NewKafkaBarsHandler("market.bars", store, &recordingMetrics{})

	ts := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC).Unix()
	msg := []byte(`{"symbol":"ETH","t":` + itoa(ts*1000) + `,"o":1,"h":1,"l":1,"c":1,"v":1}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := store.bars["ETH"][0].Time; !got.Equal(time.Unix(ts, 0).UTC()) {
		t.Fatalf("millisecond timestamp not normalized: %v", got)
	}
}

func TestKafkaBarsHandlerBadPayload(t *testing.T) {
	store := &fakeBarStore{bars: make(map[string][]models.MarketBar)}
	metrics := &recordingMetrics{}
	h := NewKafkaBarsHandler("market.bars", store, metrics)

	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if len(metrics.errors) != 1 || metrics.errors[0] != "consumer_unmarshal" {
		t.Fatalf("expected consumer_unmarshal error metric, got %v", metrics.errors)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
