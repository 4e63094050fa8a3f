package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected default driver sqlite3, got %s", cfg.Database.Driver)
	}

	if cfg.Database.URL != "halopress.db" {
		t.Errorf("expected default url halopress.db, got %s", cfg.Database.URL)
	}

	if cfg.Migration.PageSize != 100 {
		t.Errorf("expected default page size 100, got %d", cfg.Migration.PageSize)
	}

	if cfg.Summary.DescriptionLimit != 200 {
		t.Errorf("expected default description limit 200, got %d", cfg.Summary.DescriptionLimit)
	}

	if cfg.Redis.TTL != time.Hour {
		t.Errorf("expected default redis ttl 1h, got %s", cfg.Redis.TTL)
	}
	if cfg.Redis.MaxEntries != 512 {
		t.Errorf("expected default max entries 512, got %d", cfg.Redis.MaxEntries)
	}

	if cfg.Worker.Schedule != "@every 5m" {
		t.Errorf("expected default schedule '@every 5m', got %s", cfg.Worker.Schedule)
	}
	if cfg.Worker.Timeout != 10*time.Minute {
		t.Errorf("expected default worker timeout 10m, got %s", cfg.Worker.Timeout)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	configContent := `
database:
  driver: pgx
  url: postgres://localhost/halopress
  table_prefix: hp_
redis:
  addr: localhost:6379
  ttl: 10m
log:
  level: debug
  development: true
migration:
  page_size: 25
worker:
  schedule: "*/10 * * * *"
`
	os.WriteFile("halopress.yml", []byte(configContent), 0644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.Database.Driver != "pgx" {
		t.Errorf("expected driver pgx, got %s", cfg.Database.Driver)
	}

	if cfg.Database.TablePrefix != "hp_" {
		t.Errorf("expected table prefix hp_, got %s", cfg.Database.TablePrefix)
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected redis addr localhost:6379, got %s", cfg.Redis.Addr)
	}

	if cfg.Redis.TTL != 10*time.Minute {
		t.Errorf("expected redis ttl 10m, got %s", cfg.Redis.TTL)
	}

	if !cfg.Log.Development || cfg.Log.Level != "debug" {
		t.Errorf("expected development debug logging, got %+v", cfg.Log)
	}

	if cfg.Migration.PageSize != 25 {
		t.Errorf("expected page size 25, got %d", cfg.Migration.PageSize)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HALOPRESS_DATABASE_URL", "/tmp/override.db")
	t.Setenv("HALOPRESS_MIGRATION_PAGE_SIZE", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Database.URL != "/tmp/override.db" {
		t.Errorf("expected env url, got %s", cfg.Database.URL)
	}

	if cfg.Migration.PageSize != 7 {
		t.Errorf("expected env page size 7, got %d", cfg.Migration.PageSize)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	os.WriteFile(path, []byte("database:\n  url: custom.db\n"), 0644)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Database.URL != "custom.db" {
		t.Errorf("expected custom.db, got %s", cfg.Database.URL)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown driver", "database:\n  driver: mysql\n", "database.driver"},
		{"zero page size", "migration:\n  page_size: 0\n", "migration.page_size"},
		{"pattern without placeholder", "summary:\n  asset_url_pattern: /assets\n", "asset_url_pattern"},
		{"bad schedule", "worker:\n  schedule: every now and then\n", "worker.schedule"},
		{"negative timeout", "worker:\n  timeout: -1s\n", "worker.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			os.WriteFile("halopress.yaml", []byte(tt.content), 0644)

			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetProjectRoot(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "halopress.yml"), []byte(""), 0644)
	nested := filepath.Join(root, "a", "b")
	os.MkdirAll(nested, 0755)
	chdir(t, nested)

	got, err := GetProjectRoot()
	if err != nil {
		t.Fatalf("expected root, got %v", err)
	}

	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("expected %s, got %s", want, gotResolved)
	}
}

func TestLoadFindsConfigInParent(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "halopress.yml"), []byte("database:\n  url: parent.db\n"), 0644)
	nested := filepath.Join(root, "content", "posts")
	os.MkdirAll(nested, 0755)
	chdir(t, nested)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "parent.db" {
		t.Errorf("expected url from the parent config, got %s", cfg.Database.URL)
	}
}

func TestGetDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{URL: "halopress.db"}}

	t.Setenv("DATABASE_URL", "")
	if got := GetDatabaseURL(cfg); got != "halopress.db" {
		t.Errorf("expected config url, got %s", got)
	}

	t.Setenv("DATABASE_URL", "postgres://db/halo")
	if got := GetDatabaseURL(cfg); got != "postgres://db/halo" {
		t.Errorf("expected DATABASE_URL, got %s", got)
	}

	t.Setenv("HALOPRESS_DATABASE_URL", "/tmp/explicit.db")
	cfg.Database.URL = "/tmp/explicit.db"
	if got := GetDatabaseURL(cfg); got != "/tmp/explicit.db" {
		t.Errorf("expected HALOPRESS_DATABASE_URL to win, got %s", got)
	}
}
