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

// ConfigPath is the default config file location, relative to the working
// directory. Override with CONFIG_PATH.
const ConfigPath = "config.yaml"

// DefaultSessionTTL applies when sessionTTL is not set: seven days.
const DefaultSessionTTL = 168 * time.Hour

// ModelEntry declares one chat model offered to clients. API keys are
// never placed in the file; apiKeyEnv names the environment variable
// resolved at load time.
type ModelEntry struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"displayName"`
	Provider    string `yaml:"provider"`
	Endpoint    string `yaml:"endpoint"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"apiKeyEnv"`
	APIKey      string `yaml:"-"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                     string       `yaml:"port"`
	DatabaseURL              string       `yaml:"databaseURL"`
	RedisAddr                string       `yaml:"redisAddr"`
	RedisPassword            string       `yaml:"redisPassword"`
	LogLevel                 string       `yaml:"logLevel"`
	SessionTTL               string       `yaml:"sessionTTL"`
	JWTSecret                string       `yaml:"jwtSecret"`
	JWTIssuer                string       `yaml:"jwtIssuer"`
	JWTAudience              string       `yaml:"jwtAudience"`
	JWTLeeway                string       `yaml:"jwtLeeway"`
	FrontendOrigin           string       `yaml:"frontendOrigin"`
	GoogleClientID           string       `yaml:"googleClientId"`
	GoogleClientSecret       string       `yaml:"googleClientSecret"`
	GoogleRedirectURL        string       `yaml:"googleRedirectUrl"`
	StripeWebhookSecret      string       `yaml:"stripeWebhookSecret"`
	FreeChatLimit            int          `yaml:"freeChatLimit"`
	FreeMessageLimit         int          `yaml:"freeMessageLimit"`
	HistoryLimit             int          `yaml:"historyLimit"`
	PremiumUnitPrice         float64      `yaml:"premiumUnitPrice"`
	SignupRateLimitPerMinute int          `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute  int          `yaml:"loginRateLimitPerMinute"`
	AITimeout                string       `yaml:"aiTimeout"`
	DefaultModel             string       `yaml:"defaultModel"`
	Models                   []ModelEntry `yaml:"models"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		cfg.SessionTTL = v
	}
	if v := os.Getenv("FRONTEND_ORIGIN"); v != "" {
		cfg.FrontendOrigin = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.GoogleClientSecret = v
	}
	if v := os.Getenv("GOOGLE_REDIRECT_URL"); v != "" {
		cfg.GoogleRedirectURL = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.StripeWebhookSecret = v
	}
	if v := os.Getenv("SIGNUP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignupRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	for i := range cfg.Models {
		if env := strings.TrimSpace(cfg.Models[i].APIKeyEnv); env != "" {
			cfg.Models[i].APIKey = os.Getenv(env)
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.FreeChatLimit == 0 {
		cfg.FreeChatLimit = 20
	}
	if cfg.FreeMessageLimit == 0 {
		cfg.FreeMessageLimit = 20
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.PremiumUnitPrice == 0 {
		cfg.PremiumUnitPrice = 9.99
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if len(cfg.Models) == 0 {
		return errors.New("config: at least one model is required")
	}
	if cfg.DefaultModel == "" {
		return errors.New("config: defaultModel is required")
	}
	for _, m := range cfg.Models {
		if strings.TrimSpace(m.ID) == "" {
			return errors.New("config: model id is required")
		}
		if strings.TrimSpace(m.Provider) == "" {
			return fmt.Errorf("config: model %q: provider is required", m.ID)
		}
		if strings.TrimSpace(m.Endpoint) == "" {
			return fmt.Errorf("config: model %q: endpoint is required", m.ID)
		}
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.FreeChatLimit < 0 || cfg.FreeMessageLimit < 0 {
		return errors.New("config: free plan limits must be >= 0")
	}
	return nil
}

// ParseSessionTTL parses the session TTL duration string, defaulting to
// seven days when unset.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return DefaultSessionTTL, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
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

// ParseAITimeout parses the optional upstream AI timeout duration string.
func ParseAITimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return 0, fmt.Errorf("invalid aiTimeout duration: %w", err)
	}
	return dur, nil
}
