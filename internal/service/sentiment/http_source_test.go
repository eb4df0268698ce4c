package sentiment

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"IndexPulse/internal/domain/models"
)

func sentimentServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scores":{"BTC":0.6,"ETH":-0.2}}`))
	}))
}

func symbolTable(symbols ...string) *models.Table {
	table := models.NewTable()
	table.Symbols = symbols
	table.SetColumn(models.ColClose, make([]float64, len(symbols)))
	return table
}

func TestScoresMapsSymbols(t *testing.T) {
	var calls int64
	srv := sentimentServer(t, &calls)
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second, time.Minute, nil)
	got := src.Scores(symbolTable("BTC", "ETH", "DOGE"))
	if got[0] != 0.6 || got[1] != -0.2 {
		t.Fatalf("unexpected scores %v", got)
	}
	if got[2] != 0 {
		t.Fatalf("unknown symbol must score neutral, got %v", got[2])
	}
}

func TestScoresCachedWithinTTL(t *testing.T) {
	var calls int64
	srv := sentimentServer(t, &calls)
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second, time.Minute, nil)
	src.Scores(symbolTable("BTC"))
	src.Scores(symbolTable("BTC"))
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Fatalf("expected one upstream fetch within TTL, got %d", n)
	}
}

func TestScoresNeutralOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second, time.Minute, nil)
	for _, v := range src.Scores(symbolTable("BTC", "ETH")) {
		if v != 0 {
			t.Fatalf("failed fetch must yield neutral scores, got %v", v)
		}
	}
}
