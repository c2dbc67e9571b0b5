package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_ENV", "")
	t.Setenv("UPLOADS_BASE_URL", "https://cdn.example.com/")
	t.Setenv("CORS_ORIGINS", "https://shop.example.com, https://admin.example.com,")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.PersistTimeout)
	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(20<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 10, cfg.Upload.MaxFiles)
	assert.Equal(t, "https://cdn.example.com", cfg.Upload.BaseURL)
	assert.Equal(t, 4, cfg.GC.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.GC.SweepInterval)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORS.Origins)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "catalog", Schema: "public"}
	assert.Equal(t, "postgres://u:p@db:5432/catalog?sslmode=disable&search_path=public", cfg.DSN())
}

func TestServerIsProduction(t *testing.T) {
	assert.True(t, ServerConfig{Env: "production"}.IsProduction())
	assert.False(t, ServerConfig{Env: "development"}.IsProduction())
}
