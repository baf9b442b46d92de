package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

var Version = "dev"

type Config struct {
	TelegramToken string `yaml:"telegram_token" env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
	AdminID       int64  `yaml:"admin_id" env:"ADMIN_ID"`

	YtdlpPath         string        `yaml:"ytdlp_path" env:"YTDLP_PATH" env-default:"yt-dlp"`
	ScratchDir        string        `yaml:"scratch_dir" env:"SCRATCH_DIR" env-default:"./temp"`
	UsersFile         string        `yaml:"users_file" env:"USERS_FILE" env-default:"users.json"`
	CookiesFile       string        `yaml:"cookies_file" env:"INSTAGRAM_COOKIES_FILE"`
	CookiesBrowser    string        `yaml:"cookies_browser" env:"INSTAGRAM_BROWSER"`
	UserAgent         string        `yaml:"user_agent" env:"USER_AGENT" env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	Proxies           []string      `yaml:"proxies" env:"PROXY_URLS" env-separator:","`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT" env-default:"10m"`
	SessionTTL        time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"10m"`
	MaxConcurrent     int           `yaml:"max_concurrent_fetches" env:"MAX_CONCURRENT_FETCHES" env-default:"4"`
	HTTPAddr          string        `yaml:"http_addr" env:"HTTP_ADDR" env-default:":3005"`
	StatsSecret       string        `yaml:"stats_secret" env:"STATS_SECRET"`
	CORSOrigins       []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`
	DiscordWebhookURL string        `yaml:"discord_webhook_url" env:"DISCORD_WEBHOOK_URL"`
	DiscordPingUserID string        `yaml:"discord_ping_user_id" env:"DISCORD_PING_USER_ID"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Debug             bool          `yaml:"debug" env:"DEBUG"`
}

// Telegram refuses bot uploads above 50MB. A file of exactly this size is sent.
const MaxUploadBytes int64 = 50 * 1024 * 1024

const (
	FileRetention        = 30 * time.Minute
	CleanupInterval      = 5 * time.Minute
	ProgressEditInterval = 3 * time.Second
	MinSearchQueryLength = 3
	MaxURLLength         = 2048
	RecentUsersShown     = 10

	MessagingAttempts     = 3
	MessagingBaseTimeout  = 2 * time.Minute
	MessagingPerTenMB     = 30 * time.Second
	MessagingMaxTimeout   = 5 * time.Minute
	MessagingInitialDelay = 2 * time.Second

	RateLimitWindow = 60 * time.Second
	RateLimitMax    = 60
)

var (
	ImageExts = []string{"jpg", "jpeg", "png", "webp"}
	VideoExts = []string{"mp4", "mov", "m4v", "webm", "mkv"}
	AudioExts = []string{"mp3", "m4a", "aac", "ogg", "opus", "wav", "flac"}
)

// yt-dlp format selectors offered after a YouTube link.
const (
	VideoFormatSelector = "bv*[height<=720][ext=mp4]+ba[ext=m4a]/b[height<=720][ext=mp4]/bv*[height<=720]+ba/b"
	AudioFormat         = "mp3"
)

// Load reads .env (if present), then the optional YAML file, then the
// environment. Environment values win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.TelegramToken) == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// IsAdmin reports whether id is the configured privileged identity.
func (c *Config) IsAdmin(id int64) bool {
	return c.AdminID != 0 && c.AdminID == id
}

func Contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
