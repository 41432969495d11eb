// Command load runs the one-shot statistics load: every dataset in the
// configured roster is normalized, cleaned, audited, and appended into
// both destination stores.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"pulsedash/internal/config"
	"pulsedash/internal/metrics"
	"pulsedash/internal/metrics/datadog"
	"pulsedash/internal/pipeline"

	// register all backends with the storage factory; config picks one
	// per target at runtime.
	_ "pulsedash/internal/storage/mssql"
	_ "pulsedash/internal/storage/postgres"
	_ "pulsedash/internal/storage/sqlite"
)

func main() {
	cfgPath := flag.String("config", "", "yaml config path (default ./pulsedash.yaml if present)")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		log.Printf("load finished with errors:\n%v", err)
		os.Exit(1)
	}
	log.Printf("load finished cleanly")
}

// run carries the whole load so deferred cleanup (metrics flush) happens
// before the process decides its exit code.
func run(cfgPath string) error {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var backend metrics.Backend = metrics.Nop{}
	if cfg.DatadogMetrics {
		b, err := datadog.New(ctx, datadog.Options{
			JobName: "pulsedash_load",
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: datadog init failed: %v; metrics disabled", err)
		} else {
			backend = b
			defer func() {
				if err := b.Close(ctx); err != nil {
					log.Printf("metrics: close/flush error: %v", err)
				}
			}()
		}
	}

	runner := pipeline.NewDefaultRunner()
	runner.Metrics = backend

	return runner.Run(ctx, &cfg)
}
