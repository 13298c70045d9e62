package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	DatabaseURL    string `yaml:"databaseURL"`
	DataDir        string `yaml:"dataDir"`
	StorageBackend string `yaml:"storageBackend"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	SessionBackend string `yaml:"sessionBackend"`
	SessionTTL     string `yaml:"sessionTTL"`
	JWTSecret      string `yaml:"jwtSecret"`
	JWTIssuer      string `yaml:"jwtIssuer"`
	JWTAudience    string `yaml:"jwtAudience"`
	JWTLeeway      string `yaml:"jwtLeeway"`
	CookieName     string `yaml:"cookieName"`
	CookieSecure   bool   `yaml:"cookieSecure"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	TrustedProxyCIDRs  []string `yaml:"trustedProxyCidrs"`
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`

	SignupRateLimitPerMinute int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute  int `yaml:"loginRateLimitPerMinute"`

	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedImageExtensions"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`
	EventStream  string `yaml:"eventStream"`
}

// Superuser holds the bootstrap admin credentials read from the environment.
type Superuser struct {
	Username string
	Email    string
	Password string
}

// Load reads config from path (defaults to config.yaml). A missing file is
// fine; defaults and environment overrides still apply.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setCSV := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitCSV(v)
		}
	}

	setString("BOOKEX_PORT", &cfg.Port)
	setString("BOOKEX_LOG_LEVEL", &cfg.LogLevel)
	setString("BOOKEX_LOG_FORMAT", &cfg.LogFormat)
	setString("BOOKEX_DATABASE_URL", &cfg.DatabaseURL)
	setString("BOOKEX_DATA_DIR", &cfg.DataDir)
	setString("BOOKEX_STORAGE_BACKEND", &cfg.StorageBackend)
	setString("BOOKEX_MINIO_ENDPOINT", &cfg.MinioEndpoint)
	setString("BOOKEX_MINIO_ACCESS_KEY", &cfg.MinioAccessKey)
	setString("BOOKEX_MINIO_SECRET_KEY", &cfg.MinioSecretKey)
	setString("BOOKEX_MINIO_BUCKET", &cfg.MinioBucket)
	setBool("BOOKEX_MINIO_USE_SSL", &cfg.MinioUseSSL)
	setString("BOOKEX_SESSION_BACKEND", &cfg.SessionBackend)
	setString("BOOKEX_SESSION_TTL", &cfg.SessionTTL)
	setString("BOOKEX_JWT_SECRET", &cfg.JWTSecret)
	setString("JWT_ISSUER", &cfg.JWTIssuer)
	setString("JWT_AUDIENCE", &cfg.JWTAudience)
	setString("JWT_LEEWAY", &cfg.JWTLeeway)
	setString("BOOKEX_COOKIE_NAME", &cfg.CookieName)
	setBool("BOOKEX_COOKIE_SECURE", &cfg.CookieSecure)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setCSV("BOOKEX_TRUSTED_PROXY_CIDRS", &cfg.TrustedProxyCIDRs)
	setCSV("BOOKEX_CORS_ALLOWED_ORIGINS", &cfg.CORSAllowedOrigins)
	setInt("BOOKEX_SIGNUP_RATE_LIMIT_PER_MINUTE", &cfg.SignupRateLimitPerMinute)
	setInt("BOOKEX_LOGIN_RATE_LIMIT_PER_MINUTE", &cfg.LoginRateLimitPerMinute)
	if v := os.Getenv("BOOKEX_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	setCSV("BOOKEX_ALLOWED_IMAGE_EXTENSIONS", &cfg.AllowedExtensions)
	setString("BOOKEX_AMQP_URL", &cfg.AMQPURL)
	setString("BOOKEX_AMQP_EXCHANGE", &cfg.AMQPExchange)
	setString("BOOKEX_EVENT_STREAM", &cfg.EventStream)
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite:bookexchange.db"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "local"
	}
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = "jwt"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "24h"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "bookex_session"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	for i, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.AllowedExtensions[i] = ext
	}
}

func validateConfig(cfg FileConfig) error {
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: logFormat must be json or text, got %q", cfg.LogFormat)
	}
	switch cfg.StorageBackend {
	case "local":
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: storageBackend must be local or minio, got %q", cfg.StorageBackend)
	}
	switch cfg.SessionBackend {
	case "jwt":
		if len(cfg.JWTSecret) < 32 {
			return errors.New("config: jwtSecret must be at least 32 bytes (set in config.yaml or BOOKEX_JWT_SECRET)")
		}
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for redis sessions")
		}
	default:
		return fmt.Errorf("config: sessionBackend must be jwt or redis, got %q", cfg.SessionBackend)
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	if _, err := ParseJWTLeeway(cfg.JWTLeeway); err != nil {
		return err
	}
	if cfg.EventStream != "" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for eventStream")
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	return nil
}

// LoadSuperuser reads superuser credentials from BOOKEX_SUPERUSER_* with
// development defaults.
func LoadSuperuser() Superuser {
	su := Superuser{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "admin123",
	}
	if v := strings.TrimSpace(os.Getenv("BOOKEX_SUPERUSER_USERNAME")); v != "" {
		su.Username = v
	}
	if v := strings.TrimSpace(os.Getenv("BOOKEX_SUPERUSER_EMAIL")); v != "" {
		su.Email = v
	}
	if v := os.Getenv("BOOKEX_SUPERUSER_PASSWORD"); v != "" {
		su.Password = v
	}
	return su
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseSessionTTL parses the session lifetime.
func ParseSessionTTL(ttl string) (time.Duration, error) {
	dur, err := time.ParseDuration(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("sessionTTL must be positive")
	}
	return dur, nil
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}
