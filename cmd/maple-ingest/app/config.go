package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/maple-obs/maple-ingest/modules/auth"
)

const (
	defaultPort              = 3474
	defaultForwardEndpoint   = "http://127.0.0.1:4318"
	defaultForwardTimeoutMS  = 10_000
	defaultMaxBodyBytes      = 20 * 1024 * 1024
	defaultDBURL             = "file:../api/.data/maple.db"
	defaultAutumnAPIURL      = "https://api.useautumn.com"
	defaultFlushIntervalSecs = 1
	defaultLogLevel          = "info"
)

// Config is the gateway's environment-derived configuration.
type Config struct {
	Port                int
	ForwardEndpoint     string
	ForwardTimeout      time.Duration
	MaxRequestBodyBytes int64
	RequireTLS          bool

	DBURL         string
	DBAuthToken   string
	LookupHMACKey string

	AutumnSecretKey     string
	AutumnAPIURL        string
	AutumnFlushInterval time.Duration

	LogLevel string
}

// MeteringEnabled reports whether the background usage tracker should run.
// Absence of the Autumn secret disables it entirely.
func (c *Config) MeteringEnabled() bool {
	return c.AutumnSecretKey != ""
}

// LoadConfig reads configuration from the environment, applying defaults and
// validating. Any error here is fatal at startup.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, envs := range map[string][]string{
		"port":                       {"INGEST_PORT", "PORT"},
		"forward_endpoint":           {"INGEST_FORWARD_OTLP_ENDPOINT"},
		"forward_timeout_ms":         {"INGEST_FORWARD_TIMEOUT_MS"},
		"max_request_body_bytes":     {"INGEST_MAX_REQUEST_BODY_BYTES"},
		"require_tls":                {"INGEST_REQUIRE_TLS"},
		"db_url":                     {"MAPLE_DB_URL"},
		"db_auth_token":              {"MAPLE_DB_AUTH_TOKEN"},
		"lookup_hmac_key":            {"MAPLE_INGEST_KEY_LOOKUP_HMAC_KEY"},
		"autumn_secret_key":          {"AUTUMN_SECRET_KEY"},
		"autumn_api_url":             {"AUTUMN_API_URL"},
		"autumn_flush_interval_secs": {"AUTUMN_FLUSH_INTERVAL_SECS"},
		"log_level":                  {"LOG_LEVEL"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrap(err, "bind environment")
		}
	}

	cfg := &Config{}

	// Name the variable the value actually came from in errors, so a bad
	// PORT fallback is not reported as INGEST_PORT.
	portVar := "INGEST_PORT"
	if strings.TrimSpace(os.Getenv("INGEST_PORT")) == "" && strings.TrimSpace(os.Getenv("PORT")) != "" {
		portVar = "PORT"
	}
	port, err := intSetting(v, "port", portVar, defaultPort)
	if err != nil {
		return nil, err
	}
	if port == 0 || port > 65535 {
		return nil, errors.Errorf("%s must be a valid port number", portVar)
	}
	cfg.Port = port

	cfg.ForwardEndpoint = strings.TrimRight(stringSetting(v, "forward_endpoint", defaultForwardEndpoint), "/")
	if cfg.ForwardEndpoint == "" {
		return nil, errors.New("INGEST_FORWARD_OTLP_ENDPOINT is required")
	}

	timeoutMS, err := intSetting(v, "forward_timeout_ms", "INGEST_FORWARD_TIMEOUT_MS", defaultForwardTimeoutMS)
	if err != nil {
		return nil, err
	}
	cfg.ForwardTimeout = time.Duration(timeoutMS) * time.Millisecond

	maxBytes, err := intSetting(v, "max_request_body_bytes", "INGEST_MAX_REQUEST_BODY_BYTES", defaultMaxBodyBytes)
	if err != nil {
		return nil, err
	}
	cfg.MaxRequestBodyBytes = int64(maxBytes)

	cfg.RequireTLS, err = boolSetting(v, "require_tls", "INGEST_REQUIRE_TLS")
	if err != nil {
		return nil, err
	}
	if cfg.RequireTLS && !strings.HasPrefix(cfg.ForwardEndpoint, "https://") {
		return nil, errors.New("INGEST_REQUIRE_TLS=true requires an https INGEST_FORWARD_OTLP_ENDPOINT")
	}

	cfg.DBURL = stringSetting(v, "db_url", defaultDBURL)
	cfg.DBAuthToken = strings.TrimSpace(v.GetString("db_auth_token"))
	if auth.IsRemoteURL(cfg.DBURL) && cfg.DBAuthToken == "" {
		return nil, errors.New("MAPLE_DB_AUTH_TOKEN is required for remote MAPLE_DB_URL")
	}

	cfg.LookupHMACKey = strings.TrimSpace(v.GetString("lookup_hmac_key"))
	if cfg.LookupHMACKey == "" {
		return nil, errors.New("MAPLE_INGEST_KEY_LOOKUP_HMAC_KEY is required")
	}

	cfg.AutumnSecretKey = strings.TrimSpace(v.GetString("autumn_secret_key"))
	cfg.AutumnAPIURL = strings.TrimRight(stringSetting(v, "autumn_api_url", defaultAutumnAPIURL), "/")

	flushSecs, err := intSetting(v, "autumn_flush_interval_secs", "AUTUMN_FLUSH_INTERVAL_SECS", defaultFlushIntervalSecs)
	if err != nil {
		return nil, err
	}
	cfg.AutumnFlushInterval = time.Duration(flushSecs) * time.Second

	cfg.LogLevel = stringSetting(v, "log_level", defaultLogLevel)

	return cfg, nil
}

func stringSetting(v *viper.Viper, key, def string) string {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return def
	}
	return val
}

func intSetting(v *viper.Viper, key, name string, def int) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

func boolSetting(v *viper.Viper, key, name string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(v.GetString(key)))
	switch raw {
	case "":
		return false, nil
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, errors.Errorf("%s must be true/false or 1/0", name)
	}
}
