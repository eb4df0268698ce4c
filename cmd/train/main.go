package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"strings"
	"time"

	"IndexPulse/internal/di"
	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/services/features"
	"IndexPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (default: config)")
	fromFlag := flag.String("from", "", "range start, RFC3339 (default: 6 months ago)")
	toFlag := flag.String("to", "", "range end, RFC3339 (default: now)")
	demo := flag.Bool("demo", false, "train on synthetic bars instead of stored data")
	demoRows := flag.Int("demo-rows", 600, "synthetic bars per symbol in demo mode")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	var symbols []string
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}

	if *demo {
		svc, err := di.InitializeOfflineTraining(cfg)
		if err != nil {
			log.Fatalf("training init failed: %v", err)
		}
		if len(symbols) == 0 {
			symbols = []string{"BTC", "ETH"}
		}
		engine := features.NewEngine(features.WithRand(rand.New(rand.NewSource(42))))
		table := engine.Augment(syntheticTable(symbols, *demoRows))
		history, err := svc.TrainFromTable(table)
		if err != nil {
			log.Fatalf("training failed: %v", err)
		}
		log.Printf("done: final_epoch=%d best_loss=%.6f", history.FinalEpoch, history.BestLoss)
		return
	}

	svc, err := di.InitializeTraining(cfg)
	if err != nil {
		log.Fatalf("training init failed: %v", err)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -6, 0)
	if *fromFlag != "" {
		from, err = time.Parse(time.RFC3339, *fromFlag)
		if err != nil {
			log.Fatalf("bad -from: %v", err)
		}
	}
	if *toFlag != "" {
		to, err = time.Parse(time.RFC3339, *toFlag)
		if err != nil {
			log.Fatalf("bad -to: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	history, err := svc.RunTraining(ctx, symbols, from, to)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("done: final_epoch=%d best_loss=%.6f", history.FinalEpoch, history.BestLoss)
}

// syntheticTable builds a random-walk OHLCV table so the full pipeline
// can be exercised without a populated store.
func syntheticTable(symbols []string, rows int) *models.Table {
	rng := rand.New(rand.NewSource(42))
	start := time.Now().UTC().Add(-time.Duration(rows) * time.Hour).Truncate(time.Hour)

	var bars []models.MarketBar
	for _, sym := range symbols {
		price := 100.0 + rng.Float64()*100
		for i := 0; i < rows; i++ {
			drift := price * (rng.NormFloat64() * 0.01)
			open := price
			close := price + drift
			high := open
			if close > high {
				high = close
			}
			high += price * rng.Float64() * 0.005
			low := open
			if close < low {
				low = close
			}
			low -= price * rng.Float64() * 0.005
			bars = append(bars, models.MarketBar{
				Symbol: sym,
				Time:   start.Add(time.Duration(i) * time.Hour),
				Open:   open,
				High:   high,
				Low:    low,
				Close:  close,
				Volume: 1000 + rng.Float64()*5000,
			})
			price = close
		}
	}
	return models.TableFromBars(bars)
}
