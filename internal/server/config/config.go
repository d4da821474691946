// Package config loads the server configuration.
// Sources, lowest to highest precedence: defaults, .env file,
// GOPHBLOG_* environment variables, command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cover storage backends
const (
	CoverBackendLocal = "local"
	CoverBackendS3    = "s3"
	CoverBackendNone  = "none"
)

// Database drivers selected from the DSN
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const envPrefix = "GOPHBLOG_"

// Config holds every setting the server needs at startup
type Config struct {
	Log       LogConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Covers    CoversConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// ServerConfig HTTP listener settings
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig storage settings
type DatabaseConfig struct {
	// DSN is a SQLite file path or a postgres:// URL
	DSN string
	// PostCacheTTL keeps fetched posts in memory; 0 disables the cache
	PostCacheTTL time.Duration
}

// AuthConfig token, password and cookie settings
type AuthConfig struct {
	JWTSecret    string
	CookieName   string
	TokenTTL     time.Duration
	BcryptCost   int
	CookieSecure bool
}

// CoversConfig cover image storage settings
type CoversConfig struct {
	Backend        string
	UploadDir      string
	PlaceholderURL string
	S3             S3Config
	MaxBytes       int64
}

// S3Config object storage settings for the s3 cover backend
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool
}

// CORSConfig allowed browser origins
type CORSConfig struct {
	Origins []string
}

// RateLimitConfig limits login and register attempts per client IP.
// Requests of zero disables the limit. TrustProxy keys clients by
// X-Forwarded-For or X-Real-IP and must only be set behind a reverse
// proxy that overwrites those headers.
type RateLimitConfig struct {
	Window     time.Duration
	Requests   int
	TrustProxy bool
}

// LogConfig logger settings
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":4000",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          "gophblog.db",
			PostCacheTTL: 5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
			CookieName: "token",
		},
		Covers: CoversConfig{
			Backend:        CoverBackendLocal,
			UploadDir:      "uploads",
			MaxBytes:       10 << 20,
			PlaceholderURL: "https://placehold.co/600x400",
		},
		CORS: CORSConfig{
			Origins: []string{"http://localhost:3000"},
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from the .env file (if present),
// the environment and args, then validates it.
func Load(args []string) (*Config, error) {
	envFile := lookupEnvFile(args)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.applyFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// lookupEnvFile finds -env-file before the full flag set is parsed
func lookupEnvFile(args []string) string {
	flags := flag.NewFlagSet("env", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	envFile := flags.String("env-file", ".env", "")
	for i, a := range args {
		if strings.HasPrefix(a, "-env-file") || strings.HasPrefix(a, "--env-file") {
			_ = flags.Parse(args[i:])
			break
		}
	}
	return *envFile
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var err error
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", envPrefix, key, perr)
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", envPrefix, key, perr)
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", envPrefix, key, perr)
				return
			}
			*dst = b
		}
	}

	str("ADDR", &c.Server.Addr)
	dur("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	str("DATABASE_DSN", &c.Database.DSN)
	dur("POST_CACHE_TTL", &c.Database.PostCacheTTL)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	dur("TOKEN_TTL", &c.Auth.TokenTTL)
	integer("BCRYPT_COST", &c.Auth.BcryptCost)
	str("COOKIE_NAME", &c.Auth.CookieName)
	boolean("COOKIE_SECURE", &c.Auth.CookieSecure)

	str("COVER_BACKEND", &c.Covers.Backend)
	str("UPLOAD_DIR", &c.Covers.UploadDir)
	str("PLACEHOLDER_COVER_URL", &c.Covers.PlaceholderURL)
	if v, ok := lookup(envPrefix + "UPLOAD_MAX_BYTES"); ok && err == nil {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			err = fmt.Errorf("invalid %sUPLOAD_MAX_BYTES: %w", envPrefix, perr)
		} else {
			c.Covers.MaxBytes = n
		}
	}
	str("S3_BUCKET", &c.Covers.S3.Bucket)
	str("S3_REGION", &c.Covers.S3.Region)
	str("S3_ENDPOINT", &c.Covers.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.Covers.S3.AccessKey)
	str("S3_SECRET_KEY", &c.Covers.S3.SecretKey)
	str("S3_PUBLIC_BASE_URL", &c.Covers.S3.PublicBaseURL)
	boolean("S3_USE_PATH_STYLE", &c.Covers.S3.UsePathStyle)

	if v, ok := lookup(envPrefix + "CORS_ORIGINS"); ok {
		c.CORS.Origins = splitList(v)
	}

	integer("LOGIN_RATE", &c.RateLimit.Requests)
	dur("LOGIN_RATE_WINDOW", &c.RateLimit.Window)
	boolean("TRUST_PROXY_HEADERS", &c.RateLimit.TrustProxy)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return err
}

func (c *Config) applyFlags(args []string) error {
	flags := flag.NewFlagSet("gophblog-server", flag.ContinueOnError)

	flags.String("env-file", ".env", "Path to .env file")
	flags.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address")
	flags.StringVar(&c.Database.DSN, "dsn", c.Database.DSN, "SQLite file path or postgres:// URL")
	flags.DurationVar(&c.Database.PostCacheTTL, "post-cache-ttl", c.Database.PostCacheTTL, "In-memory post cache lifetime, 0 disables")
	flags.StringVar(&c.Auth.JWTSecret, "jwt-secret", c.Auth.JWTSecret, "Token signing secret")
	flags.DurationVar(&c.Auth.TokenTTL, "token-ttl", c.Auth.TokenTTL, "Token lifetime, 0 disables expiry")
	flags.IntVar(&c.Auth.BcryptCost, "bcrypt-cost", c.Auth.BcryptCost, "bcrypt cost factor")
	flags.StringVar(&c.Covers.Backend, "cover-backend", c.Covers.Backend, "Cover storage: local, s3 or none")
	flags.StringVar(&c.Covers.UploadDir, "upload-dir", c.Covers.UploadDir, "Directory for local covers")
	flags.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level: debug, info, warn, error")
	flags.StringVar(&c.Log.Format, "log-format", c.Log.Format, "Log format: text or json")

	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.Database.PostCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("post cache ttl cannot be negative: %s", c.Database.PostCacheTTL))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New(envPrefix+"JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("token ttl cannot be negative: %s", c.Auth.TokenTTL))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt cost must be between 4 and 31, got %d", c.Auth.BcryptCost))
	}
	if c.Auth.CookieName == "" {
		errs = append(errs, errors.New("cookie name is required"))
	}

	switch c.Covers.Backend {
	case CoverBackendLocal:
		if c.Covers.UploadDir == "" {
			errs = append(errs, errors.New("upload dir is required for the local cover backend"))
		}
	case CoverBackendS3:
		if c.Covers.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required for the s3 cover backend"))
		}
		if c.Covers.S3.Region == "" {
			errs = append(errs, errors.New("s3 region is required for the s3 cover backend"))
		}
	case CoverBackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cover backend %q", c.Covers.Backend))
	}
	if c.Covers.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("upload max bytes must be positive, got %d", c.Covers.MaxBytes))
	}

	if c.RateLimit.Requests < 0 {
		errs = append(errs, fmt.Errorf("login rate cannot be negative, got %d", c.RateLimit.Requests))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("login rate window must be positive"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Driver reports which storage backend the DSN selects
func (d DatabaseConfig) Driver() string {
	if strings.HasPrefix(d.DSN, "postgres://") || strings.HasPrefix(d.DSN, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// SlogLevel parses the configured level name
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
