// Package config builds the explicit configuration value the pipeline
// and the report layer are constructed with. It is loaded once at
// process start and passed by reference; nothing mutates it afterwards
// and there is no package-level singleton.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"

	"pulsedash/internal/storage"
)

// Dataset pairs a destination table name with its JSON source root
// (a file or a directory of files), relative to DataRoot unless absolute.
type Dataset struct {
	Name   string `mapstructure:"name"`
	Source string `mapstructure:"source"`
}

type Config struct {
	// Primary is the preferred (cloud) target; Secondary is the durable
	// local fallback. Both receive every load.
	Primary   storage.Config
	Secondary storage.Config

	DataRoot  string
	CSVDir    string
	ReportDir string

	BatchSize int
	// TruncateBeforeLoad clears each destination table once per run
	// before appending. Default false: repeated runs accumulate rows.
	TruncateBeforeLoad bool
	// AuditWorkbook additionally writes an xlsx summary of the run's
	// null counts into ReportDir.
	AuditWorkbook bool

	// Datasets is the roster the orchestrator processes, in order.
	Datasets []Dataset

	// HTTPAddr is the report API listen address.
	HTTPAddr string

	// DatadogMetrics enables the Datadog metrics backend (credentials
	// come from DD_API_KEY in the environment, as the client expects).
	DatadogMetrics bool
}

// DefaultDatasets is the fixed roster of nine published statistics
// tables, keyed to the layout of the pulse data tree.
func DefaultDatasets() []Dataset {
	return []Dataset{
		{Name: "aggregated_insurance", Source: "aggregated/insurance/country/india/state"},
		{Name: "aggregated_transactions", Source: "aggregated/transaction/country/india/state"},
		{Name: "aggregated_user", Source: "aggregated/user/country/india/state"},
		{Name: "insurance_data", Source: "top/insurance/country/india/state"},
		{Name: "insurance_hover", Source: "map/insurance/hover/country/india/state"},
		{Name: "map_transaction_hover", Source: "map/transaction/hover/country/india/state"},
		{Name: "map_user", Source: "map/user/hover/country/india/state"},
		{Name: "top_transaction", Source: "top/transaction/country/india/state"},
		{Name: "top_user_by_pincode", Source: "top/user/country/india/state"},
	}
}

func defaults() Config {
	return Config{
		Primary:   storage.Config{Kind: "postgres"},
		Secondary: storage.Config{Kind: "sqlite", DSN: "file:pulsedash.db"},
		DataRoot:  "data",
		CSVDir:    "processed_csv",
		ReportDir: "reports",
		BatchSize: 10000,
		Datasets:  DefaultDatasets(),
		HTTPAddr:  ":8080",
	}
}

// Load reads the yaml config at path (or ./pulsedash.yaml when path is
// empty) and applies PULSEDASH_-prefixed environment overrides. A missing
// file is not an error; defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pulsedash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("PULSEDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"primary.kind", "primary.dsn",
		"secondary.kind", "secondary.dsn",
		"data_root", "csv_dir", "report_dir",
		"batch_size", "truncate_before_load", "audit_workbook",
		"http_addr", "datadog_metrics",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
		log.Printf("[config] no config file found, using defaults and environment")
	}

	if v.IsSet("primary.kind") {
		cfg.Primary.Kind = v.GetString("primary.kind")
	}
	if v.IsSet("primary.dsn") {
		cfg.Primary.DSN = v.GetString("primary.dsn")
	}
	if v.IsSet("secondary.kind") {
		cfg.Secondary.Kind = v.GetString("secondary.kind")
	}
	if v.IsSet("secondary.dsn") {
		cfg.Secondary.DSN = v.GetString("secondary.dsn")
	}
	if v.IsSet("data_root") {
		cfg.DataRoot = v.GetString("data_root")
	}
	if v.IsSet("csv_dir") {
		cfg.CSVDir = v.GetString("csv_dir")
	}
	if v.IsSet("report_dir") {
		cfg.ReportDir = v.GetString("report_dir")
	}
	if v.IsSet("batch_size") {
		cfg.BatchSize = v.GetInt("batch_size")
	}
	if v.IsSet("truncate_before_load") {
		cfg.TruncateBeforeLoad = v.GetBool("truncate_before_load")
	}
	if v.IsSet("audit_workbook") {
		cfg.AuditWorkbook = v.GetBool("audit_workbook")
	}
	if v.IsSet("http_addr") {
		cfg.HTTPAddr = v.GetString("http_addr")
	}
	if v.IsSet("datadog_metrics") {
		cfg.DatadogMetrics = v.GetBool("datadog_metrics")
	}
	if v.IsSet("datasets") {
		cfg.Datasets = nil
		if err := v.UnmarshalKey("datasets", &cfg.Datasets); err != nil {
			return Config{}, fmt.Errorf("config: datasets: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Primary.Kind == "" || cfg.Secondary.Kind == "" {
		return fmt.Errorf("config: both primary.kind and secondary.kind are required")
	}
	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("config: dataset roster is empty")
	}
	seen := map[string]bool{}
	for _, d := range cfg.Datasets {
		if d.Name == "" || d.Source == "" {
			return fmt.Errorf("config: dataset entries need both name and source")
		}
		if seen[d.Name] {
			return fmt.Errorf("config: duplicate dataset name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
