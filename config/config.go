package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram    TelegramConfig
	DB          DBConfig
	Poller      PollerConfig
	Marketplace MarketplaceConfig
	ProxyURL    string
	LogPath     string
}

type TelegramConfig struct {
	Token string
}

type DBConfig struct {
	Driver string // postgres or sqlite
	URL    string // postgres connection string
	Path   string // sqlite file path
}

type PollerConfig struct {
	Interval      time.Duration
	Cron          string
	WarmUp        time.Duration
	SendDelay     time.Duration
	MaxConcurrent int
}

// MarketplaceConfig holds the AutoRia endpoints and scraping limits.
// Defaults match the public site; config/marketplace.yaml can override
// them, which keeps tests off the network and survives URL moves
// without a rebuild.
type MarketplaceConfig struct {
	SearchURL          string `yaml:"search_url"`
	BrandsURL          string `yaml:"brands_url"`
	ModelsURL          string `yaml:"models_url"` // printf pattern, %d = brand id
	StatesURL          string `yaml:"states_url"`
	FinalPageURL       string `yaml:"final_page_url"` // printf pattern, %d = car id
	BaseURL            string `yaml:"base_url"`
	PageSize           int    `yaml:"page_size"`
	DetailsConcurrency int    `yaml:"details_concurrency"`
	DetailsTimeoutSec  int    `yaml:"details_timeout_sec"`
	CacheTTLSec        int    `yaml:"cache_ttl_sec"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}

	cfg := &Config{
		Telegram: TelegramConfig{Token: token},
		DB: DBConfig{
			Driver: getEnv("DB_DRIVER", "postgres"),
			URL:    databaseURL(),
			Path:   getEnv("DB_PATH", "autoria.db"),
		},
		Poller: PollerConfig{
			Interval:      time.Duration(getEnvInt("POLL_INTERVAL_SEC", 600)) * time.Second,
			Cron:          os.Getenv("POLL_CRON"),
			WarmUp:        time.Duration(getEnvInt("POLL_WARMUP_SEC", 10)) * time.Second,
			SendDelay:     500 * time.Millisecond,
			MaxConcurrent: getEnvInt("POLL_MAX_CONCURRENT", 5),
		},
		Marketplace: defaultMarketplace(),
		ProxyURL:    os.Getenv("PROXY_URL"),
		LogPath:     getEnv("LOG_PATH", "bot.log"),
	}

	if err := cfg.loadMarketplaceOverrides("config/marketplace.yaml"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultMarketplace() MarketplaceConfig {
	return MarketplaceConfig{
		SearchURL:          "https://auto.ria.com/uk/search/",
		BrandsURL:          "https://auto.ria.com/api/categories/1/marks",
		ModelsURL:          "https://auto.ria.com/api/categories/1/marks/%d/models",
		StatesURL:          "https://auto.ria.com/api/states",
		FinalPageURL:       "https://auto.ria.com/bff/final-page/public/%d",
		BaseURL:            "https://auto.ria.com",
		PageSize:           20,
		DetailsConcurrency: 6,
		DetailsTimeoutSec:  20,
		CacheTTLSec:        3600,
	}
}

func (c *Config) loadMarketplaceOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, &c.Marketplace); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// databaseURL assembles the Postgres connection string from either
// DATABASE_URL or the discrete DB_* variables.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		return ""
	}
	pass := os.Getenv("DB_PASS")
	name := os.Getenv("DB_NAME")
	host := getEnv("DB_HOST", "db")
	port := getEnv("DB_PORT", "5432")
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
