package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Path to the sqlite database file
	DatabasePath string `env:"DATABASE_PATH" envDefault:"database/rent_data.db"`

	// Base URL template for the listing source; %s is the market site code
	SourceBaseURL string `env:"SOURCE_BASE_URL" envDefault:"https://%s.craigslist.org"`

	// URL of the page enumerating all markets
	SitesURL string `env:"SITES_URL" envDefault:"https://www.craigslist.org/about/sites"`

	// Maximum results consumed per query
	ResultLimit int `env:"RESULT_LIMIT" envDefault:"100"`

	// Price bands carried over from the source system; configuration
	// defaults, not derived business rules
	PropertyMinPrice int `env:"PROPERTY_MIN_PRICE" envDefault:"100"`
	PropertyMaxPrice int `env:"PROPERTY_MAX_PRICE" envDefault:"20000"`
	RoomMinPrice     int `env:"ROOM_MIN_PRICE" envDefault:"25"`
	RoomMaxPrice     int `env:"ROOM_MAX_PRICE" envDefault:"3500"`

	// Bedroom counts swept for whole-unit queries, inclusive
	MinBedrooms int `env:"MIN_BEDROOMS" envDefault:"1"`
	MaxBedrooms int `env:"MAX_BEDROOMS" envDefault:"8"`

	// Emit a progress log line every Nth record of a query
	ProgressEvery int `env:"PROGRESS_EVERY" envDefault:"100"`

	// Minimum delay between requests to the listing source (milliseconds)
	RequestDelayMs int `env:"REQUEST_DELAY_MS" envDefault:"500"`

	// HTTP timeout for source and catalog requests (seconds)
	HTTPTimeout int `env:"HTTP_TIMEOUT" envDefault:"30"`

	// Number of markets swept concurrently; 1 preserves the fully
	// sequential reference behavior
	MarketWorkers int `env:"MARKET_WORKERS" envDefault:"1"`

	// Retries for a failed insert on the direct persistence path
	StoreMaxRetries int `env:"STORE_MAX_RETRIES" envDefault:"3"`

	// Delay between store retries in seconds
	StoreRetryDelay int `env:"STORE_RETRY_DELAY" envDefault:"2"`

	// BatchIngest configuration for the queue-backed persistence path
	BatchIngest struct {
		// Use the buffered ingest path instead of direct inserts
		Enabled bool `env:"BATCH_INGEST_ENABLED" envDefault:"false"`

		// Maximum number of listings per queued batch
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"50"`

		// Number of concurrent ingest processors
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed inserts
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
