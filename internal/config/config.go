package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env, optionally seeded from a local .env file.
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Twilio TwilioConfig
	AI     AIConfig
	Dialer DialerConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable https origin used to build
	// media-stream websocket URLs handed to the telephony provider.
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// AutoMigrate applies embedded migrations at startup.
	AutoMigrate bool
}

// RedisConfig is optional. An empty host disables live-session caps.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TwilioConfig holds the webhook signing token. Empty disables signature
// checks, which Validate only allows outside production.
type TwilioConfig struct {
	AuthToken string
}

// AIConfig describes the speech-AI realtime endpoint.
type AIConfig struct {
	APIKey       string
	RealtimeURL  string
	Model        string
	DefaultVoice string
}

type DialerConfig struct {
	// DefaultCountryCode is used by phone normalization, digits only (e.g. "91").
	DefaultCountryCode string
	// DefaultTimeZone applies when an organization has none configured.
	DefaultTimeZone string
	// EnableRealCalls switches dispatch from simulated outcomes to the call queue.
	EnableRealCalls bool

	SessionIdleTimeout time.Duration
	SessionMaxDuration time.Duration
	// MaxLiveSessionsPerOrg caps concurrent bridge sessions; 0 disables the cap.
	MaxLiveSessionsPerOrg int
}

func Load() (Config, error) {
	// A missing .env file is fine; the process runner may inject env directly.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.AutoMigrate = optionalBool("DB_AUTO_MIGRATE", false)

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.AI.RealtimeURL = strings.TrimSpace(os.Getenv("AI_REALTIME_URL"))
	c.AI.Model = strings.TrimSpace(os.Getenv("AI_REALTIME_MODEL"))
	c.AI.DefaultVoice = strings.TrimSpace(os.Getenv("AI_DEFAULT_VOICE"))

	c.Dialer.DefaultCountryCode = strings.TrimPrefix(strings.TrimSpace(os.Getenv("DEFAULT_COUNTRY_CODE")), "+")
	c.Dialer.DefaultTimeZone = strings.TrimSpace(os.Getenv("DEFAULT_TIME_ZONE"))
	c.Dialer.EnableRealCalls = optionalBool("ENABLE_REAL_CALLS", false)
	c.Dialer.SessionIdleTimeout = mustDuration("SESSION_IDLE_TIMEOUT")
	c.Dialer.SessionMaxDuration = mustDuration("SESSION_MAX_DURATION")
	if v := strings.TrimSpace(os.Getenv("MAX_LIVE_SESSIONS_PER_ORG")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("MAX_LIVE_SESSIONS_PER_ORG must be an integer, got %q", v))
		}
		c.Dialer.MaxLiveSessionsPerOrg = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("PUBLIC_BASE_URL is required in production"))
		} else {
			c.App.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		}
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.IsProduction() && c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required in production"))
	}

	if c.AI.RealtimeURL == "" {
		c.AI.RealtimeURL = "wss://api.openai.com/v1/realtime"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-realtime-preview"
	}
	if c.AI.DefaultVoice == "" {
		c.AI.DefaultVoice = "alloy"
	}
	if c.Dialer.EnableRealCalls && c.AI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required when ENABLE_REAL_CALLS is set"))
	}

	if c.Dialer.DefaultCountryCode == "" {
		c.Dialer.DefaultCountryCode = "91"
	}
	if _, err := strconv.Atoi(c.Dialer.DefaultCountryCode); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_COUNTRY_CODE must be numeric, got %q", c.Dialer.DefaultCountryCode))
	}
	if c.Dialer.DefaultTimeZone == "" {
		c.Dialer.DefaultTimeZone = "Asia/Kolkata"
	}
	if _, err := time.LoadLocation(c.Dialer.DefaultTimeZone); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TIME_ZONE is not a known zone: %q", c.Dialer.DefaultTimeZone))
	}
	if c.Dialer.SessionIdleTimeout <= 0 {
		c.Dialer.SessionIdleTimeout = 60 * time.Second
	}
	if c.Dialer.SessionMaxDuration <= 0 {
		c.Dialer.SessionMaxDuration = 15 * time.Minute
	}
	if c.Dialer.MaxLiveSessionsPerOrg < 0 {
		errs = append(errs, errors.New("MAX_LIVE_SESSIONS_PER_ORG must be >= 0"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func optionalBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
