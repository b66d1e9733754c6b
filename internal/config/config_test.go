package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"API_ADDR", "DATABASE_URL", "GOOGLE_API_KEY", "QSERVICE_AUTOSAVE_DELAY_MS", "QSERVICE_IMPORT_DEBOUNCE_MS", "MINIO_USE_SSL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8787" || cfg.DatabaseURL != "" || cfg.GoogleAPIKey != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.AutoSaveDelay != time.Second || cfg.ImportDebounce != 1500*time.Millisecond {
		t.Fatalf("unexpected debounce defaults %v %v", cfg.AutoSaveDelay, cfg.ImportDebounce)
	}
	if cfg.MaxUploadBytes != 25<<20 || cfg.MinioUseSSL {
		t.Fatalf("unexpected upload/minio defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QSERVICE_AUTOSAVE_DELAY_MS", "250")
	t.Setenv("QSERVICE_MAX_UPLOAD_MB", "bogus")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()
	if cfg.AutoSaveDelay != 250*time.Millisecond {
		t.Fatalf("expected override, got %v", cfg.AutoSaveDelay)
	}
	if cfg.MaxUploadBytes != 25<<20 {
		t.Fatalf("expected fallback for bad int, got %d", cfg.MaxUploadBytes)
	}
	if !cfg.MinioUseSSL {
		t.Fatal("expected MINIO_USE_SSL to parse")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("QSERVICE_HISTORY_DIR=/srv/history\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("QSERVICE_HISTORY_DIR", "")
	os.Unsetenv("QSERVICE_HISTORY_DIR")

	cfg := Load()
	if cfg.HistoryDir != "/srv/history" {
		t.Fatalf("expected value from .env, got %q", cfg.HistoryDir)
	}
}
