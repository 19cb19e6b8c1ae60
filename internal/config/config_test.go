package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("MODPATCH_ROOT", "/mods")
	t.Setenv("MODPATCH_GAME", "hoi4")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY_MS", "20")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.Root != "/mods" || cfg.Game != "hoi4" || cfg.WorkerCount != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	policy := cfg.RetryPolicy()
	if policy.Attempts != 5 || policy.Delay != 20*time.Millisecond {
		t.Fatalf("unexpected retry policy %+v", policy)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Fatalf("level = %v", cfg.Level())
	}
}

func TestGetEnvInt_Fallback(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	if got := getEnvInt("WORKER_COUNT", 8); got != 8 {
		t.Fatalf("getEnvInt = %d, want fallback", got)
	}
}

func TestLevel_Invalid(t *testing.T) {
	t.Parallel()
	cfg := &Config{LogLevel: "loud"}
	if cfg.Level() != zerolog.InfoLevel {
		t.Fatalf("level = %v", cfg.Level())
	}
}
