package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// Secrets are normally left empty in the file and resolved from the environment.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Frame       FrameConfig       `yaml:"frame"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Engagement  EngagementConfig  `yaml:"engagement"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// BasePath is the route prefix of the frame, e.g. "/api".
	BasePath string `yaml:"basePath"`
	// PublicURL is the externally reachable origin used in frame meta tags.
	PublicURL string `yaml:"publicURL"`
}

type FrameConfig struct {
	Title       string `yaml:"title"`
	TokenSymbol string `yaml:"tokenSymbol"`
	// CastHash identifies the reference post. If empty, read FRAME_CAST_HASH.
	CastHash string `yaml:"castHash"`
	// LandingImageURL replaces the rendered landing card when set.
	LandingImageURL string `yaml:"landingImageURL"`
	// ValidateActions verifies signed frame actions through Neynar to obtain the interactor.
	ValidateActions bool `yaml:"validateActions"`
}

type CredentialsConfig struct {
	// If empty, read from env WIELD_API_KEY
	WieldAPIKey string `yaml:"wieldAPIKey"`
	// If empty, read from env NEYNAR_API_KEY
	NeynarAPIKey string `yaml:"neynarAPIKey"`
	// If empty, read from env AIRSTACK_API_KEY
	AirstackAPIKey string `yaml:"airstackAPIKey"`
	// CardSecret signs the card carried in image URLs. If empty, read from
	// env EARNFRAME_CARD_SECRET. At least 16 characters.
	CardSecret string `yaml:"cardSecret"`
}

type ProvidersConfig struct {
	WieldBaseURL  string        `yaml:"wieldBaseURL"`
	NeynarBaseURL string        `yaml:"neynarBaseURL"`
	AirstackURL   string        `yaml:"airstackURL"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"maxAttempts"`
	BaseBackoff   time.Duration `yaml:"baseBackoff"`
	RPS           float64       `yaml:"rps"`
	Burst         int           `yaml:"burst"`
}

type EngagementConfig struct {
	// Policy is "any" (liked or recasted) or "all" (liked and recasted).
	Policy string `yaml:"policy"`
	// ReactionLimit caps reactions fetched per type; later reactions are not inspected.
	ReactionLimit int `yaml:"reactionLimit"`
}

type StorageConfig struct {
	// DBPath enables the sqlite outcome log when non-empty.
	DBPath string `yaml:"dbPath"`
	// Retention is how long events are kept; serve prunes older rows hourly.
	// Zero keeps everything.
	Retention time.Duration `yaml:"retention"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MinCardSecret is the shortest accepted card signing secret.
const MinCardSecret = 16

var (
	ErrMissingSecret   = errors.New("missing secret")
	ErrMissingCastHash = errors.New("missing reference cast hash")
)

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: ":8080", BasePath: "/api", PublicURL: "http://localhost:8080"},
		Frame: FrameConfig{
			Title:           "$MOXIE Earnings Tracker",
			TokenSymbol:     "$MOXIE",
			ValidateActions: true,
		},
		Providers: ProvidersConfig{
			WieldBaseURL:  "https://api.wield.xyz",
			NeynarBaseURL: "https://api.neynar.com",
			AirstackURL:   "https://api.airstack.xyz/gql",
			Timeout:       3 * time.Second,
			MaxAttempts:   2,
			BaseBackoff:   200 * time.Millisecond,
			RPS:           5,
			Burst:         10,
		},
		Engagement: EngagementConfig{Policy: "any", ReactionLimit: 50},
		Storage:    StorageConfig{Retention: 30 * 24 * time.Hour},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.WieldAPIKey == "" {
		c.Credentials.WieldAPIKey = os.Getenv("WIELD_API_KEY")
	}
	if c.Credentials.NeynarAPIKey == "" {
		c.Credentials.NeynarAPIKey = os.Getenv("NEYNAR_API_KEY")
	}
	if c.Credentials.AirstackAPIKey == "" {
		c.Credentials.AirstackAPIKey = os.Getenv("AIRSTACK_API_KEY")
	}
	if c.Credentials.CardSecret == "" {
		c.Credentials.CardSecret = os.Getenv("EARNFRAME_CARD_SECRET")
	}
	if c.Frame.CastHash == "" {
		c.Frame.CastHash = os.Getenv("FRAME_CAST_HASH")
	}
	if v := os.Getenv("EARNFRAME_PUBLIC_URL"); v != "" {
		c.Server.PublicURL = v
	}
	if v := os.Getenv("EARNFRAME_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
}

// Validate rejects configurations that would make the frame call upstream
// APIs without credentials.
func (c Config) Validate() error {
	var errs []error
	for name, v := range map[string]string{
		"wieldAPIKey":    c.Credentials.WieldAPIKey,
		"neynarAPIKey":   c.Credentials.NeynarAPIKey,
		"airstackAPIKey": c.Credentials.AirstackAPIKey,
		"cardSecret":     c.Credentials.CardSecret,
	} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSecret, name))
		}
	}
	if v := strings.TrimSpace(c.Credentials.CardSecret); v != "" && len(v) < MinCardSecret {
		errs = append(errs, fmt.Errorf("cardSecret must be at least %d characters", MinCardSecret))
	}
	if strings.TrimSpace(c.Frame.CastHash) == "" {
		errs = append(errs, ErrMissingCastHash)
	}
	switch strings.ToLower(c.Engagement.Policy) {
	case "", "any", "all":
	default:
		errs = append(errs, fmt.Errorf("unknown engagement policy %q", c.Engagement.Policy))
	}
	if c.Storage.Retention < 0 {
		errs = append(errs, errors.New("retention must not be negative"))
	}
	if c.Engagement.ReactionLimit < 0 {
		errs = append(errs, errors.New("reactionLimit must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads YAML config from path on top of Default(). A .env file next to
// the working directory is loaded first so ResolveEnv can see it.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	LoadDotEnv(".env")
	cfg.ResolveEnv()
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
