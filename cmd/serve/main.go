// Command serve exposes the reporting scenarios over HTTP as JSON
// tables. Every report resolves its own store connection per request, so
// the server stays up through primary outages as long as the secondary
// answers.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"pulsedash/internal/config"
	"pulsedash/internal/report"
	"pulsedash/internal/server"

	_ "pulsedash/internal/storage/mssql"
	_ "pulsedash/internal/storage/postgres"
	_ "pulsedash/internal/storage/sqlite"
)

func main() {
	cfgPath := flag.String("config", "", "yaml config path (default ./pulsedash.yaml if present)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Printf("serve: %v", err)
		os.Exit(1)
	}

	svc := report.NewService(report.NewExecutor(cfg.Primary, cfg.Secondary))
	handler := cors.Default().Handler(server.New(svc).Handler())

	log.Printf("serve: listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, handler); err != nil {
		log.Printf("serve: %v", err)
		os.Exit(1)
	}
}
