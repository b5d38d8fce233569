package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

// Session backends.
const (
	SessionBackendFile     = "file"
	SessionBackendPostgres = "postgres"
	SessionBackendS3       = "s3"
)

// Environment variable names read by LoadSettings.
const (
	EnvLogLevel         = "JOBHUNTER_LOG_LEVEL"
	EnvLogFormat        = "JOBHUNTER_LOG_FORMAT"
	EnvSessionBackend   = "JOBHUNTER_SESSION_BACKEND"
	EnvSessionDir       = "JOBHUNTER_SESSION_DIR"
	EnvSessionCompress  = "JOBHUNTER_SESSION_COMPRESS"
	EnvMetricsAddr      = "JOBHUNTER_METRICS_ADDR"
	EnvDBURL            = "DB_URL"
	EnvS3Bucket         = "S3_BUCKET"
	EnvS3Endpoint       = "S3_ENDPOINT"
	EnvS3AccessKey      = "S3_ACCESS_KEY"
	EnvS3SecretKey      = "S3_SECRET_KEY"
	EnvS3Region         = "S3_REGION"
	EnvRabbitMQURL      = "RABBITMQ_URL"
	EnvRabbitMQExchange = "RABBITMQ_EXCHANGE"
)

// Settings is the runtime configuration taken from the environment.
type Settings struct {
	LogLevel  string
	LogFormat string

	SessionBackend  string
	SessionDir      string
	SessionCompress bool

	DBURL string
	S3    S3Settings

	RabbitMQURL      string
	RabbitMQExchange string

	MetricsAddr string
}

// S3Settings configures the S3 (or R2 compatible) session repository.
type S3Settings struct {
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// LoadSettings loads the given .env files (defaulting to ".env"; missing
// files are ignored), reads the environment and validates the result.
// Variables already set in the process environment win over .env entries.
func LoadSettings(envFiles ...string) (*Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, jherrors.NewConfigError(fmt.Sprintf("failed to load env file '%s'", f), err)
		}
	}
	return SettingsFromEnv(os.LookupEnv)
}

// SettingsFromEnv builds Settings from a lookup function such as
// os.LookupEnv.
func SettingsFromEnv(lookup func(string) (string, bool)) (*Settings, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	s := &Settings{
		LogLevel:         get(EnvLogLevel, "info"),
		LogFormat:        strings.ToLower(get(EnvLogFormat, "text")),
		SessionBackend:   strings.ToLower(get(EnvSessionBackend, SessionBackendFile)),
		SessionDir:       get(EnvSessionDir, ".jobhunter/sessions"),
		DBURL:            get(EnvDBURL, ""),
		RabbitMQURL:      get(EnvRabbitMQURL, ""),
		RabbitMQExchange: get(EnvRabbitMQExchange, "jobhunter_events"),
		MetricsAddr:      get(EnvMetricsAddr, ""),
		S3: S3Settings{
			Bucket:    get(EnvS3Bucket, ""),
			Endpoint:  get(EnvS3Endpoint, ""),
			AccessKey: get(EnvS3AccessKey, ""),
			SecretKey: get(EnvS3SecretKey, ""),
			Region:    get(EnvS3Region, "auto"),
		},
	}

	if raw := get(EnvSessionCompress, ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, jherrors.NewConfigError(fmt.Sprintf("%s must be a boolean, got '%s'", EnvSessionCompress, raw), err)
		}
		s.SessionCompress = b
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks backend specific requirements.
func (s *Settings) Validate() error {
	var errs []string
	switch s.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("%s must be 'text' or 'json', got '%s'", EnvLogFormat, s.LogFormat))
	}
	switch s.SessionBackend {
	case SessionBackendFile:
		if s.SessionDir == "" {
			errs = append(errs, fmt.Sprintf("%s is required for the file session backend", EnvSessionDir))
		}
	case SessionBackendPostgres:
		if s.DBURL == "" {
			errs = append(errs, fmt.Sprintf("%s is required for the postgres session backend", EnvDBURL))
		}
	case SessionBackendS3:
		if s.S3.Bucket == "" {
			errs = append(errs, fmt.Sprintf("%s is required for the s3 session backend", EnvS3Bucket))
		}
		if (s.S3.AccessKey == "") != (s.S3.SecretKey == "") {
			errs = append(errs, fmt.Sprintf("%s and %s must be set together", EnvS3AccessKey, EnvS3SecretKey))
		}
	default:
		errs = append(errs, fmt.Sprintf("%s must be one of file, postgres, s3; got '%s'", EnvSessionBackend, s.SessionBackend))
	}
	if len(errs) > 0 {
		return jherrors.NewConfigError(strings.Join(errs, "; "), nil)
	}
	return nil
}
