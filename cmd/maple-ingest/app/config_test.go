package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment LoadConfig accepts.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MAPLE_INGEST_KEY_LOOKUP_HMAC_KEY", "test-hmac")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 3474, cfg.Port)
	require.Equal(t, "http://127.0.0.1:4318", cfg.ForwardEndpoint)
	require.Equal(t, 10*time.Second, cfg.ForwardTimeout)
	require.Equal(t, int64(20*1024*1024), cfg.MaxRequestBodyBytes)
	require.False(t, cfg.RequireTLS)
	require.Equal(t, "file:../api/.data/maple.db", cfg.DBURL)
	require.Equal(t, "test-hmac", cfg.LookupHMACKey)
	require.Equal(t, "https://api.useautumn.com", cfg.AutumnAPIURL)
	require.Equal(t, time.Second, cfg.AutumnFlushInterval)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.MeteringEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_PORT", "8080")
	t.Setenv("INGEST_FORWARD_OTLP_ENDPOINT", "https://collector.internal:4318/")
	t.Setenv("INGEST_FORWARD_TIMEOUT_MS", "2500")
	t.Setenv("INGEST_MAX_REQUEST_BODY_BYTES", "1048576")
	t.Setenv("INGEST_REQUIRE_TLS", "true")
	t.Setenv("MAPLE_DB_URL", "libsql://maple.turso.io")
	t.Setenv("MAPLE_DB_AUTH_TOKEN", "tok-123")
	t.Setenv("AUTUMN_SECRET_KEY", "am_sk_live")
	t.Setenv("AUTUMN_API_URL", "https://autumn.internal/")
	t.Setenv("AUTUMN_FLUSH_INTERVAL_SECS", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	// Trailing slashes are stripped so path joining stays predictable.
	require.Equal(t, "https://collector.internal:4318", cfg.ForwardEndpoint)
	require.Equal(t, 2500*time.Millisecond, cfg.ForwardTimeout)
	require.Equal(t, int64(1048576), cfg.MaxRequestBodyBytes)
	require.True(t, cfg.RequireTLS)
	require.Equal(t, "libsql://maple.turso.io", cfg.DBURL)
	require.Equal(t, "tok-123", cfg.DBAuthToken)
	require.Equal(t, "https://autumn.internal", cfg.AutumnAPIURL)
	require.Equal(t, 5*time.Second, cfg.AutumnFlushInterval)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.MeteringEnabled())
}

func TestLoadConfigPortFallback(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
}

func TestLoadConfigIngestPortWinsOverPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_PORT", "7070")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Port)
}

func TestLoadConfigInvalidPort(t *testing.T) {
	setRequiredEnv(t)

	for _, bad := range []string{"not-a-number", "-1", "0", "70000"} {
		t.Setenv("INGEST_PORT", bad)
		_, err := LoadConfig()
		require.Error(t, err, "port %q", bad)
		require.Contains(t, err.Error(), "INGEST_PORT")
	}
}

func TestLoadConfigInvalidPortFallbackNamesPort(t *testing.T) {
	setRequiredEnv(t)

	for _, bad := range []string{"not-a-number", "0", "70000"} {
		t.Setenv("PORT", bad)
		_, err := LoadConfig()
		require.Error(t, err, "port %q", bad)
		require.Contains(t, err.Error(), "PORT")
		require.NotContains(t, err.Error(), "INGEST_PORT")
	}
}

func TestLoadConfigInvalidTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_FORWARD_TIMEOUT_MS", "soon")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "INGEST_FORWARD_TIMEOUT_MS")
}

func TestLoadConfigRequireTLSNeedsHTTPSEndpoint(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_REQUIRE_TLS", "true")
	t.Setenv("INGEST_FORWARD_OTLP_ENDPOINT", "http://collector.internal:4318")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "INGEST_REQUIRE_TLS")
}

func TestLoadConfigInvalidRequireTLS(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_REQUIRE_TLS", "maybe")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRemoteDBNeedsToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAPLE_DB_URL", "libsql://maple.turso.io")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MAPLE_DB_AUTH_TOKEN")
}

func TestLoadConfigMissingHMACKey(t *testing.T) {
	t.Setenv("MAPLE_INGEST_KEY_LOOKUP_HMAC_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MAPLE_INGEST_KEY_LOOKUP_HMAC_KEY")
}
