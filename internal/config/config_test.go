package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/price-collector/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
database:
  host: localhost
  name: pricewatch
  user: postgres
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "https://api.ebay.com/identity/v1/oauth2/token", cfg.Ebay.TokenURL)
	assert.Equal(t, "EBAY_US", cfg.Ebay.Marketplace)
	assert.Equal(t, int64(5000), cfg.Ebay.RateLimit.DailyLimit)
	assert.Equal(t, "USD", cfg.Currency.TargetCurrency)
	assert.Equal(t, time.Hour, cfg.Currency.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.CollectionInterval)
	assert.Equal(t, 50, cfg.Schedule.BatchLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "price-collector", cfg.Telemetry.ServiceName)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := config.Load(writeConfig(t, `
database:
  host: localhost
  name: pricewatch
  user: postgres
  password: ${TEST_DB_PASSWORD}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing database host",
			yaml:    "database:\n  name: x\n  user: y\n",
			wantErr: "database.host is required",
		},
		{
			name:    "half-configured ebay credentials",
			yaml:    minimalConfig + "ebay:\n  app_id: my-app\n",
			wantErr: "must be set together",
		},
		{
			name:    "bad target currency",
			yaml:    minimalConfig + "currency:\n  target_currency: DOLLARS\n",
			wantErr: "target_currency",
		},
		{
			name:    "webhook enabled without url",
			yaml:    minimalConfig + "notifications:\n  webhook:\n    enabled: true\n",
			wantErr: "webhook.url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestEbayConfigured(t *testing.T) {
	t.Parallel()

	e := &config.EbayConfig{}
	assert.False(t, e.Configured())
	e.AppID = "app"
	e.CertID = "cert"
	assert.True(t, e.Configured())
}

func TestDatabaseDSN(t *testing.T) {
	t.Parallel()

	d := &config.DatabaseConfig{
		Host: "db", Port: 5432, Name: "pricewatch",
		User: "postgres", Password: "pw", SSLMode: "disable",
	}
	assert.Equal(
		t,
		"host=db port=5432 dbname=pricewatch user=postgres password=pw sslmode=disable",
		d.DSN(),
	)
}
