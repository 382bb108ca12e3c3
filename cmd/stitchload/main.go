// Package main implements the stitchload binary: a Singer target that
// reads SCHEMA/RECORD/STATE messages on stdin, validates and batches
// records, and loads each batch into the configured import endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/stitchload/stitchload/internal/config"
	"github.com/stitchload/stitchload/internal/journal"
	"github.com/stitchload/stitchload/internal/pipeline"
	"github.com/stitchload/stitchload/internal/storage"
	"github.com/stitchload/stitchload/internal/submit"
	"github.com/stitchload/stitchload/internal/telemetry"
)

func main() {
	log.SetOutput(os.Stderr)

	// log.Fatalf skips deferred cleanup, so the run body lives in a
	// helper whose defers fire before the process exits non-zero.
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	cfg, err := resolveConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if !cfg.DisableTelemetry {
		log.Printf("Sending anonymous usage data; set disable_telemetry to true to opt out")
		telemetry.Send()
	}

	runID := uuid.NewString()
	log.Printf("Starting stitchload run %s", runID)
	log.Printf("Destination: https://%s%s table %q, batch size %d",
		cfg.Endpoint.Host, cfg.Endpoint.Path, cfg.TableName, cfg.BatchSize)

	opts, closers, err := buildSideEffects(cfg, runID)
	if err != nil {
		return fmt.Errorf("failed to initialize side outputs: %w", err)
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	submitter := submit.NewSubmitter(http.DefaultClient, cfg.Endpoint.Host, cfg.Endpoint.Path, cfg.Token)
	p := pipeline.New(submitter, cfg.TableName, cfg.BatchSize, runID, opts...)

	state, err := p.Run(context.Background(), os.Stdin)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	emitState(state)
	log.Printf("Run %s completed", runID)
	return nil
}

// resolveConfig merges defaults, config file, environment, and flags,
// in that order of increasing precedence.
func resolveConfig() (*config.Config, error) {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	token := flag.String("token", "", "API token (overrides config)")
	table := flag.String("table", "", "Destination table name (overrides config)")
	flag.Parse()

	// A .env file is optional; ignore a missing one.
	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if *token != "" {
		cfg.Token = *token
	}
	if *table != "" {
		cfg.TableName = *table
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildSideEffects constructs the optional journal and archiver.
func buildSideEffects(cfg *config.Config, runID string) ([]pipeline.Option, []func(), error) {
	var opts []pipeline.Option
	var closers []func()

	if cfg.Journal.Enabled {
		j, err := journal.NewJournal(cfg.Journal.Path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := j.Close(); err != nil {
				log.Printf("Journal close error: %v", err)
			}
		})
		opts = append(opts, pipeline.WithJournal(j))
		log.Printf("Flush journal enabled at %s", cfg.Journal.Path)
	}

	if cfg.Archive.Enabled {
		store, err := buildArchiveStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithArchiver(storage.NewArchiver(store, runID)))
		log.Printf("Batch archive enabled (%s)", cfg.Archive.Storage.Type)
	}

	return opts, closers, nil
}

func buildArchiveStore(cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Archive.Storage.Type {
	case "s3":
		return storage.NewS3Storage(context.Background(), cfg.Archive.Storage.S3.Bucket, storage.S3Config{
			Region:   cfg.Archive.Storage.S3.Region,
			Endpoint: cfg.Archive.Storage.S3.Endpoint,
		})
	default:
		return storage.NewLocalStorage(cfg.Archive.Storage.Path)
	}
}

// emitState writes the final checkpoint to stdout, one JSON line,
// only when a non-null checkpoint is held.
func emitState(state json.RawMessage) {
	if state == nil || string(state) == "null" {
		return
	}
	fmt.Println(string(state))
}
