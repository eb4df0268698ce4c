package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"IndexPulse/internal/domain/models"
	internalrepo "IndexPulse/internal/repository"
	"IndexPulse/pkg/config"
	pkgkafka "IndexPulse/pkg/kafka"
)

// ingest reads OHLCV bars from a CSV file and publishes them to the
// bars topic, from where the app's consumer writes them to storage.
//
// CSV columns: symbol,time(RFC3339),open,high,low,close,volume
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	file := flag.String("file", "", "CSV file of bars (required)")
	batch := flag.Int("batch", 500, "bars per publish batch")
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	publisher := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	defer publisher.Close()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close()

	ctx := context.Background()
	r := csv.NewReader(f)
	total := 0
	pending := make([]*models.MarketBar, 0, *batch)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := publisher.PublishBatch(ctx, pending); err != nil {
			log.Fatalf("publish: %v", err)
		}
		total += len(pending)
		pending = pending[:0]
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("csv: %v", err)
		}
		bar, err := parseBar(rec)
		if err != nil {
			log.Printf("skipping row: %v", err)
			continue
		}
		pending = append(pending, bar)
		if len(pending) >= *batch {
			flush()
		}
	}
	flush()

	log.Printf("published %d bars to %s", total, cfg.Kafka.Topic)
}

func parseBar(rec []string) (*models.MarketBar, error) {
	if len(rec) < 7 {
		return nil, strconv.ErrSyntax
	}
	t, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return nil, err
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(rec[2+i], 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return &models.MarketBar{
		Symbol: rec[0],
		Time:   t.UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
