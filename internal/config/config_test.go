package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("expected default listen :8080, got %q", cfg.Server.Listen)
	}
	if cfg.Worker.BatchLimit != 30 {
		t.Errorf("expected default batch limit 30, got %d", cfg.Worker.BatchLimit)
	}
	if cfg.Worker.StaleAfter != 6*time.Hour {
		t.Errorf("expected default stale after 6h, got %v", cfg.Worker.StaleAfter)
	}
	if cfg.Restore.RootCategoryID != 1 {
		t.Errorf("expected default root category 1, got %d", cfg.Restore.RootCategoryID)
	}
	if cfg.LMS.Timeout != 10*time.Minute {
		t.Errorf("expected default lms timeout 10m, got %v", cfg.LMS.Timeout)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  listen: ":9090"
transfer:
  enabled: true
  url: ftp.example.com
  base_path: /backup
  organize_by_category: true
worker:
  batch_limit: 10
  stale_after: 2h
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("expected listen :9090, got %q", cfg.Server.Listen)
	}
	if !cfg.Transfer.Enabled || cfg.Transfer.URL != "ftp.example.com" {
		t.Errorf("transfer config not loaded: %+v", cfg.Transfer)
	}
	if !cfg.Transfer.OrganizeByCategory {
		t.Error("expected organize_by_category true")
	}
	if cfg.Worker.BatchLimit != 10 {
		t.Errorf("expected batch limit 10, got %d", cfg.Worker.BatchLimit)
	}
	if cfg.Worker.StaleAfter != 2*time.Hour {
		t.Errorf("expected stale after 2h, got %v", cfg.Worker.StaleAfter)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("expected defaults for missing file, got %q", cfg.Server.Listen)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("TRANSFER_ENABLED", "true")
	t.Setenv("TRANSFER_URL", "ftps://backup.example.com:2121")
	t.Setenv("TRANSFER_USE_COURSE_NAME", "yes")
	t.Setenv("WORKER_BATCH_LIMIT", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Listen != ":7070" {
		t.Errorf("expected listen :7070, got %q", cfg.Server.Listen)
	}
	if !cfg.Transfer.Enabled || cfg.Transfer.URL != "ftps://backup.example.com:2121" {
		t.Errorf("transfer env overrides not applied: %+v", cfg.Transfer)
	}
	if !cfg.Transfer.UseCourseName {
		t.Error("expected use_course_name true from env")
	}
	if cfg.Worker.BatchLimit != 5 {
		t.Errorf("expected batch limit 5, got %d", cfg.Worker.BatchLimit)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("transfer enabled without url", func(t *testing.T) {
		t.Setenv("TRANSFER_ENABLED", "true")
		if _, err := Load(""); err == nil {
			t.Error("expected error for transfer without URL")
		}
	})

	t.Run("local enabled with short path", func(t *testing.T) {
		t.Setenv("LOCAL_ENABLED", "true")
		t.Setenv("LOCAL_PATH", "/a")
		if _, err := Load(""); err == nil {
			t.Error("expected error for short local path")
		}
	})
}
