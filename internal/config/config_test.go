package config

import (
	"testing"
	"time"
)

// TestLoad_MissingRequired は必須環境変数が未設定の場合にエラーになることをテストする。
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing DATABASE_URL")
	}
}

// TestLoad_Defaults はオプション項目にデフォルト値が適用されることをテストする。
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/trackman?sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.IdempotencySuccessTTL != 180*time.Second {
		t.Errorf("IdempotencySuccessTTL = %v, want %v", cfg.IdempotencySuccessTTL, 180*time.Second)
	}
	if cfg.IdempotencyFailureTTL != 90*time.Second {
		t.Errorf("IdempotencyFailureTTL = %v, want %v", cfg.IdempotencyFailureTTL, 90*time.Second)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.CleanupInterval != 10*time.Minute {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, 10*time.Minute)
	}
}

// TestLoad_Overrides は環境変数でデフォルト値を上書きできることをテストする。
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/trackman?sslmode=disable")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("IDEMPOTENCY_SUCCESS_TTL", "5m")
	t.Setenv("RATE_LIMIT_MUTATION", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "9090")
	}
	if cfg.IdempotencySuccessTTL != 5*time.Minute {
		t.Errorf("IdempotencySuccessTTL = %v, want %v", cfg.IdempotencySuccessTTL, 5*time.Minute)
	}
	if cfg.RateLimitMutation != 10 {
		t.Errorf("RateLimitMutation = %d, want 10", cfg.RateLimitMutation)
	}
}

// TestLoad_InvalidOptionalFallsBack は不正なオプション値がデフォルトにフォールバックすることをテストする。
func TestLoad_InvalidOptionalFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/trackman?sslmode=disable")
	t.Setenv("RATE_LIMIT_GENERAL", "not-a-number")
	t.Setenv("CLEANUP_INTERVAL", "garbage")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.CleanupInterval != 10*time.Minute {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, 10*time.Minute)
	}
}
