package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config defines all environment-driven runtime options.
type Config struct {
	APIID   int    `env:"API_ID"`
	APIHash string `env:"API_HASH"`

	RefID string `env:"REF_ID"`

	AutoMining       bool `env:"AUTO_MINING" envDefault:"true"`
	ClaimRefPoints   bool `env:"CLAIM_REF_POINTS" envDefault:"true"`
	AutoQuest        bool `env:"AUTO_QUEST" envDefault:"true"`
	UseProxyFromFile bool `env:"USE_PROXY_FROM_FILE" envDefault:"false"`
	CheckProxy       bool `env:"CHECK_PROXY" envDefault:"true"`

	BotUsername       string `env:"BOT_USERNAME" envDefault:"snapster_bot"`
	WebAppURL         string `env:"WEBAPP_URL" envDefault:"https://prod.snapster.bot/"`
	APIBaseURL        string `env:"API_BASE_URL" envDefault:"https://prod.snapster.bot/api"`
	// WebAppDecodeDepth 1 sends the Telegram initData form; 2 unquotes twice
	// like the legacy client.
	WebAppDecodeDepth int    `env:"WEBAPP_DECODE_DEPTH" envDefault:"1"`

	SessionsDir     string `env:"SESSIONS_DIR" envDefault:"sessions"`
	AccountsFile    string `env:"ACCOUNTS_FILE" envDefault:"accounts.yaml"`
	ProxyFile       string `env:"PROXY_FILE" envDefault:"proxies.txt"`
	FingerprintFile string `env:"FINGERPRINT_FILE" envDefault:"sessions/accounts.json"`

	InterActionDelay time.Duration `env:"INTER_ACTION_DELAY" envDefault:"5s"`
	QuestStepDelay   time.Duration `env:"QUEST_STEP_DELAY" envDefault:"2s"`
	CycleIdleDelay   time.Duration `env:"CYCLE_IDLE_DELAY" envDefault:"1h"`
	CycleJitter      time.Duration `env:"CYCLE_JITTER" envDefault:"5m"`
	ErrorBackoff     time.Duration `env:"ERROR_BACKOFF" envDefault:"3s"`
	StatsRetryDelay  time.Duration `env:"STATS_RETRY_DELAY" envDefault:"3s"`
	BridgeRetryDelay time.Duration `env:"BRIDGE_RETRY_DELAY" envDefault:"3s"`
	FloodWaitMargin  time.Duration `env:"FLOOD_WAIT_MARGIN" envDefault:"3s"`
	DailyClaimWindow time.Duration `env:"DAILY_CLAIM_WINDOW" envDefault:"24h"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	FloodMaxRetries int     `env:"FLOOD_MAX_RETRIES" envDefault:"0"`
	APIRPS          float64 `env:"API_RPS" envDefault:"2"`
	APIBurst        int     `env:"API_BURST" envDefault:"1"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`

	StatusAddr  string `env:"STATUS_ADDR"`
	StatusToken string `env:"STATUS_TOKEN"`
}

// Load reads .env (if present) and parses environment variables into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireTelegram reports whether the chat-client credentials are present.
func (c *Config) RequireTelegram() error {
	if c.APIID <= 0 || c.APIHash == "" {
		return errors.New("API_ID and API_HASH are required")
	}
	return nil
}

func (c *Config) validate() error {
	if c.WebAppDecodeDepth != 1 && c.WebAppDecodeDepth != 2 {
		return fmt.Errorf("WEBAPP_DECODE_DEPTH must be 1 or 2, got %d", c.WebAppDecodeDepth)
	}
	if c.FloodMaxRetries < 0 {
		return fmt.Errorf("FLOOD_MAX_RETRIES must not be negative, got %d", c.FloodMaxRetries)
	}
	if c.APIRPS <= 0 {
		return fmt.Errorf("API_RPS must be positive, got %v", c.APIRPS)
	}
	if c.APIBurst <= 0 {
		c.APIBurst = 1
	}
	return nil
}
