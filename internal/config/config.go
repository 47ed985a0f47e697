// Package config loads elva's environment boundary: database, LLM,
// webhook and Gmail credential settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/elva-ai/elva/internal/logging"
)

// Environment variable names.
const (
	EnvMongoURL             = "MONGO_URL"
	EnvDBName               = "DB_NAME"
	EnvGroqAPIKey           = "GROQ_API_KEY"
	EnvClaudeAPIKey         = "CLAUDE_API_KEY"
	EnvN8NWebhookURL        = "N8N_WEBHOOK_URL"
	EnvGmailCredentialsPath = "GMAIL_CREDENTIALS_PATH"
	EnvGmailTokenPath       = "GMAIL_TOKEN_PATH"

	EnvHTTPAddr           = "HTTP_ADDR"
	EnvStoreDriver        = "STORE_DRIVER"
	EnvSQLitePath         = "SQLITE_PATH"
	EnvGroqModel          = "GROQ_MODEL"
	EnvClaudeModel        = "CLAUDE_MODEL"
	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	EnvGmailRateLimit     = "GMAIL_RATE_LIMIT"
	EnvGmailRateBurst     = "GMAIL_RATE_BURST"
	EnvLogFormat          = "LOG_FORMAT"
)

// Store drivers.
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Defaults for optional settings.
const (
	DefaultCredentialsPath = "credentials.json"
	DefaultTokenPath       = "token.json"
	DefaultHTTPAddr        = ":8001"
	DefaultSQLitePath      = "elva.db"
	DefaultGroqModel       = "llama3-8b-8192"
	DefaultClaudeModel     = "claude-3-5-sonnet-20241022"
	DefaultGmailRateLimit  = 10.0
	DefaultGmailRateBurst  = 5
)

// RequiredEnv lists the variables that must be set and non-empty, in the
// order they are reported.
var RequiredEnv = []string{
	EnvMongoURL,
	EnvDBName,
	EnvGroqAPIKey,
	EnvClaudeAPIKey,
	EnvN8NWebhookURL,
}

// ErrMissingEnv is wrapped by MissingEnvError.
var ErrMissingEnv = errors.New("missing required environment variables")

// MissingEnvError names every required variable that is unset or blank.
type MissingEnvError struct {
	Missing []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingEnv, strings.Join(e.Missing, ", "))
}

func (e *MissingEnvError) Unwrap() error {
	return ErrMissingEnv
}

// Config is the process configuration.
type Config struct {
	MongoURL             string
	DBName               string
	GroqAPIKey           string
	ClaudeAPIKey         string
	N8NWebhookURL        string
	GmailCredentialsPath string
	GmailTokenPath       string

	HTTPAddr           string
	StoreDriver        string
	SQLitePath         string
	GroqModel          string
	ClaudeModel        string
	CORSAllowedOrigins []string
	GmailRateLimit     float64
	GmailRateBurst     int
	LogFormat          string
}

// Load reads configuration from the environment and, when envFile is set,
// from a dotenv file. A missing dotenv file is not an error. Real
// environment variables take precedence over the file. Load does not
// validate; call Validate.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	// An exported but empty variable must still shadow the env file.
	v.AllowEmptyEnv(true)

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading env file %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		MongoURL:             strings.TrimSpace(v.GetString(EnvMongoURL)),
		DBName:               strings.TrimSpace(v.GetString(EnvDBName)),
		GroqAPIKey:           strings.TrimSpace(v.GetString(EnvGroqAPIKey)),
		ClaudeAPIKey:         strings.TrimSpace(v.GetString(EnvClaudeAPIKey)),
		N8NWebhookURL:        strings.TrimSpace(v.GetString(EnvN8NWebhookURL)),
		GmailCredentialsPath: optional(v, EnvGmailCredentialsPath, DefaultCredentialsPath),
		GmailTokenPath:       optional(v, EnvGmailTokenPath, DefaultTokenPath),
		HTTPAddr:             optional(v, EnvHTTPAddr, DefaultHTTPAddr),
		StoreDriver:          strings.ToLower(optional(v, EnvStoreDriver, StoreMongo)),
		SQLitePath:           optional(v, EnvSQLitePath, DefaultSQLitePath),
		GroqModel:            optional(v, EnvGroqModel, DefaultGroqModel),
		ClaudeModel:          optional(v, EnvClaudeModel, DefaultClaudeModel),
		CORSAllowedOrigins:   splitList(optional(v, EnvCORSAllowedOrigins, "*")),
		GmailRateLimit:       DefaultGmailRateLimit,
		GmailRateBurst:       DefaultGmailRateBurst,
		LogFormat:            optional(v, EnvLogFormat, logging.FormatText),
	}
	if optional(v, EnvGmailRateLimit, "") != "" {
		cfg.GmailRateLimit = v.GetFloat64(EnvGmailRateLimit)
	}
	if optional(v, EnvGmailRateBurst, "") != "" {
		cfg.GmailRateBurst = v.GetInt(EnvGmailRateBurst)
	}
	return cfg, nil
}

// optional returns the trimmed value of key, or def when it is empty.
// Empty environment variables count as set, so defaults are applied here
// rather than by viper.
func optional(v *viper.Viper, key, def string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return def
}

// Validate checks that every required variable is set and that the
// values that have a shape are well formed.
func (c *Config) Validate() error {
	var errs []error

	values := c.requiredValues()
	var missing []string
	for _, name := range RequiredEnv {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, &MissingEnvError{Missing: missing})
	}

	if c.N8NWebhookURL != "" {
		u, err := url.Parse(c.N8NWebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL", EnvN8NWebhookURL))
		}
	}

	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURL != "" && !strings.HasPrefix(c.MongoURL, "mongodb://") && !strings.HasPrefix(c.MongoURL, "mongodb+srv://") {
			errs = append(errs, fmt.Errorf("%s must start with mongodb:// or mongodb+srv://", EnvMongoURL))
		}
	case StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid %s %q, must be one of: mongo, sqlite, memory", EnvStoreDriver, c.StoreDriver))
	}

	if c.GmailRateLimit <= 0 || c.GmailRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("%s and %s must be positive", EnvGmailRateLimit, EnvGmailRateBurst))
	}

	return errors.Join(errs...)
}

// Redacted returns the configuration keyed by environment variable name,
// with secrets masked for display.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		EnvMongoURL:             logging.SanitizeURL(c.MongoURL),
		EnvDBName:               c.DBName,
		EnvGroqAPIKey:           logging.SanitizeToken(c.GroqAPIKey),
		EnvClaudeAPIKey:         logging.SanitizeToken(c.ClaudeAPIKey),
		EnvN8NWebhookURL:        logging.SanitizeURL(c.N8NWebhookURL),
		EnvGmailCredentialsPath: c.GmailCredentialsPath,
		EnvGmailTokenPath:       c.GmailTokenPath,
		EnvHTTPAddr:             c.HTTPAddr,
		EnvStoreDriver:          c.StoreDriver,
		EnvGroqModel:            c.GroqModel,
		EnvClaudeModel:          c.ClaudeModel,
	}
}

func (c *Config) requiredValues() map[string]string {
	return map[string]string{
		EnvMongoURL:      c.MongoURL,
		EnvDBName:        c.DBName,
		EnvGroqAPIKey:    c.GroqAPIKey,
		EnvClaudeAPIKey:  c.ClaudeAPIKey,
		EnvN8NWebhookURL: c.N8NWebhookURL,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
