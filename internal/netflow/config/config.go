package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the process reads from the environment.
type Config struct {
	RPCURL       string // WebSocket endpoint
	TokenAddress string // monitored ERC-20 contract

	Confirmations uint64

	PGDSN    string
	HTTPAddr string

	// Comma-separated exchange address list; empty means the built-in list.
	ExchangeAddresses string

	// Optional transfer firehose; empty brokers disables.
	KafkaBrokers string
	KafkaTopic   string

	// Optional raw-log journal; empty path disables.
	JournalPath string

	Debug bool
}

// Load reads config from env vars, with .env support. RPC_URL,
// POL_TOKEN_ADDRESS and PG_DSN are required; the rest have defaults.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Config{
		RPCURL:            os.Getenv("RPC_URL"),
		TokenAddress:      os.Getenv("POL_TOKEN_ADDRESS"),
		Confirmations:     getEnvAsUint("CONFIRMATIONS", 20),
		PGDSN:             os.Getenv("PG_DSN"),
		HTTPAddr:          getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		ExchangeAddresses: os.Getenv("BINANCE_ADDRESSES"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "netflow.transfers"),
		JournalPath:       os.Getenv("JOURNAL_PATH"),
		Debug:             getEnvAsBool("DEBUG", false),
	}

	if cfg.RPCURL == "" {
		return Config{}, fmt.Errorf("RPC_URL required")
	}
	if cfg.TokenAddress == "" {
		return Config{}, fmt.Errorf("POL_TOKEN_ADDRESS required")
	}
	if cfg.PGDSN == "" {
		return Config{}, fmt.Errorf("PG_DSN required")
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvAsUint(key string, defaultVal uint64) uint64 {
	if v, err := strconv.ParseUint(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return defaultVal
}
