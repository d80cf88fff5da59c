package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"costbook/internal/config"
	"costbook/internal/core"
	"costbook/internal/rates"
	"costbook/internal/reports"
	"costbook/internal/storage"
)

// One-shot report builder: prints the monthly report as indented JSON on
// stdout, keeping logs on stderr so the output stays pipeable.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	now := time.Now()
	year := flag.Int("year", now.Year(), "report year")
	month := flag.Int("month", int(now.Month()), "report month (1-12)")
	currency := flag.String("currency", "USD", "display currency (USD, GBP, EURO, ILS)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store := storage.New(cfg.DBPath)
	defer store.Close()

	provider := rates.New(store, cfg.RateDefaultURL, cfg.RateFallbackURL, cfg.RateTimeout)
	builder := reports.NewBuilder(store, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := builder.Build(ctx, core.Period{Year: *year, Month: *month}, core.Currency(*currency))
	if err != nil {
		logger.Error("Building report failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("Encoding report failed", "error", err)
		os.Exit(1)
	}
}
