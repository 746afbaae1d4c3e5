package config

import "testing"

func TestLoadRequiredVars(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("POL_TOKEN_ADDRESS", "")
	t.Setenv("PG_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error with empty required vars")
	}

	t.Setenv("RPC_URL", "wss://polygon.example/ws")
	t.Setenv("POL_TOKEN_ADDRESS", "0x455e53CBB86018Ac2B8092FdCd39d8444aFFC3F6")
	t.Setenv("PG_DSN", "postgres://x:y@127.0.0.1:5432/netflow")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Confirmations != 20 {
		t.Errorf("default confirmations = %d, want 20", cfg.Confirmations)
	}
	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("default http addr = %s", cfg.HTTPAddr)
	}
	if cfg.KafkaTopic != "netflow.transfers" {
		t.Errorf("default kafka topic = %s", cfg.KafkaTopic)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "wss://polygon.example/ws")
	t.Setenv("POL_TOKEN_ADDRESS", "0x455e53CBB86018Ac2B8092FdCd39d8444aFFC3F6")
	t.Setenv("PG_DSN", "postgres://x:y@127.0.0.1:5432/netflow")
	t.Setenv("CONFIRMATIONS", "5")
	t.Setenv("BINANCE_ADDRESSES", "0xaa,0xbb")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Confirmations != 5 {
		t.Errorf("confirmations = %d, want 5", cfg.Confirmations)
	}
	if cfg.ExchangeAddresses != "0xaa,0xbb" {
		t.Errorf("exchange addresses = %s", cfg.ExchangeAddresses)
	}
}
