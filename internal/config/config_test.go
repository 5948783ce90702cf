package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("BASE_URL", "http://admin.test/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://admin.test" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.Auth.GoogleRedirectURL != "http://admin.test/auth/google/callback" {
		t.Errorf("GoogleRedirectURL = %q", cfg.Auth.GoogleRedirectURL)
	}
	if cfg.Storage.Driver != "local" {
		t.Errorf("Storage.Driver = %q, want local", cfg.Storage.Driver)
	}
	if cfg.Jobs.AuditRetention != 365*24*time.Hour {
		t.Errorf("AuditRetention = %v", cfg.Jobs.AuditRetention)
	}
}

func TestLoad_AdminEmailsNormalized(t *testing.T) {
	t.Setenv("ADMIN_EMAILS", " Admin@Example.org, ,ops@example.org ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"admin@example.org", "ops@example.org"}
	if strings.Join(cfg.Auth.AdminEmails, ",") != strings.Join(want, ",") {
		t.Errorf("AdminEmails = %v, want %v", cfg.Auth.AdminEmails, want)
	}
}

func TestLoad_ProductionRequiresGoogle(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without Google credentials in production")
	}
}

func TestLoad_ProductionRequiresWhitelist(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("ADMIN_EMAILS", "")
	t.Setenv("ADMIN_DOMAIN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without a whitelist in production")
	}

	t.Setenv("ADMIN_DOMAIN", "@Example.org")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with domain: %v", err)
	}
	if cfg.Auth.AdminDomain != "example.org" {
		t.Errorf("AdminDomain = %q", cfg.Auth.AdminDomain)
	}
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_BUCKET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for s3 without bucket")
	}
}

func TestLoad_UnknownStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "ftp")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Password: "p@ss", Name: "miqaat"}
	dsn := d.DSN()
	if !strings.Contains(dsn, "tcp(db:3306)") {
		t.Errorf("DSN %q missing default port", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN %q missing parseTime", dsn)
	}

	d.dsnOverride = "override"
	if d.DSN() != "override" {
		t.Errorf("DATABASE_URL override ignored")
	}
}
