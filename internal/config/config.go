package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          string `env:"PORT" envDefault:"3000"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	AppLink       string `env:"APP_LINK" envDefault:"cookout://auth/callback"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	TikTok   TikTok
	Google   Google
	State    State
	Firebase Firebase

	DirectoryBackend string `env:"DIRECTORY_BACKEND" envDefault:"firebase"`
	DatabaseURL      string `env:"DATABASE_URL"`
}

type TikTok struct {
	ClientKey    string `env:"TIKTOK_CLIENT_KEY"`
	ClientSecret string `env:"TIKTOK_CLIENT_SECRET"`
	RedirectURI  string `env:"TIKTOK_REDIRECT_URI"`
	Scope        string `env:"TIKTOK_SCOPE" envDefault:"user.info.basic"`
}

type Google struct {
	ClientID string `env:"GOOGLE_CLIENT_ID"`
}

type State struct {
	Backend       string        `env:"STATE_BACKEND" envDefault:"memory"`
	TTL           time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix     string        `env:"STATE_KEY_PREFIX" envDefault:"oauth:state:"`
}

type Firebase struct {
	ProjectID          string `env:"FIREBASE_PROJECT_ID"`
	ServiceAccountFile string `env:"FIREBASE_SERVICE_ACCOUNT_FILE" envDefault:"serviceAccountKey.json"`
	ServiceAccountJSON string `env:"FIREBASE_SERVICE_ACCOUNT_JSON"`
	ServiceAccountB64  string `env:"FIREBASE_SERVICE_ACCOUNT_B64"`
	EmulatorHost       string `env:"FIREBASE_AUTH_EMULATOR_HOST"`
	UseEmulator        bool   `env:"USE_AUTH_EMULATOR"`
}

// Load reads .env when present, then the environment, and applies defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.Port
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if c.TikTok.RedirectURI == "" {
		c.TikTok.RedirectURI = c.PublicBaseURL + "/tiktokCallback"
	}
	if c.Firebase.UseEmulator && c.Firebase.EmulatorHost == "" {
		c.Firebase.EmulatorHost = "localhost:9100"
	}
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
}

func (c Config) Validate() error {
	var errs []error
	switch c.State.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("STATE_BACKEND must be memory or redis, got %q", c.State.Backend))
	}
	switch c.DirectoryBackend {
	case "firebase", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres directory"))
		}
	default:
		errs = append(errs, fmt.Errorf("DIRECTORY_BACKEND must be firebase, postgres or memory, got %q", c.DirectoryBackend))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.State.TTL <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// Warnings lists settings that leave a login path unusable.
func (c Config) Warnings() []string {
	var w []string
	if c.Google.ClientID == "" {
		w = append(w, "GOOGLE_CLIENT_ID is missing; /googleVerify will fail")
	}
	if c.TikTok.ClientKey == "" || c.TikTok.ClientSecret == "" {
		w = append(w, "TikTok client key/secret not set; /tiktok* will fail")
	}
	if c.State.Backend == "memory" {
		w = append(w, "state tokens are kept in memory; run a single instance or set STATE_BACKEND=redis")
	}
	return w
}
