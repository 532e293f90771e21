package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"stream-proxy/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	RedisClient RedisClient `json:"redisClient"`
	Extractor   Extractor   `json:"extractor"`
	Cache       Cache       `json:"cache"`
	RateLimit   RateLimit   `json:"rateLimit"`
	Storage     Storage     `json:"storage"`
	Batch       Batch       `json:"batch"`
}

type App struct {
	Port int `json:"port"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Extractor struct {
	URL string `json:"url"`
	// TimeoutSec bounds a single extraction call; the upstream is third-party
	// and can hang.
	TimeoutSec int `json:"timeoutSec"`
	// OutboundRPS caps calls to the extraction service per process.
	OutboundRPS   float64 `json:"outboundRps"`
	OutboundBurst int     `json:"outboundBurst"`
}

type Cache struct {
	// TTLSec is the default entry lifetime when the extractor returns no
	// expiry hint. Direct media URLs typically expire, so keep this short.
	TTLSec         int `json:"ttlSec"`
	NegativeTTLSec int `json:"negativeTtlSec"`
	SweepSec       int `json:"sweepSec"`
}

type RateLimit struct {
	WindowSec   int `json:"windowSec"`
	MaxRequests int `json:"maxRequests"`
	DownloadMax int `json:"downloadMax"`
	IdleTTLSec  int `json:"idleTtlSec"`
	CleanupSec  int `json:"cleanupSec"`
}

type Storage struct {
	Dir   string  `json:"dir"`
	MaxGB float64 `json:"maxGb"`
}

type Batch struct {
	Concurrency int `json:"concurrency"`
	MaxItems    int `json:"maxItems"`
}

var C Config

func init() {
	LoadConfig()
	initApp(&C)
	initPolicies(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initApp(C *Config) {
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 8000
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 8000
	}

	if C.RedisClient.Host == "" {
		C.RedisClient.Host = os.Getenv("REDIS_HOST")
	}
	if C.RedisClient.Port == "" {
		if v := os.Getenv("REDIS_PORT"); v != "" {
			C.RedisClient.Port = v
		} else {
			C.RedisClient.Port = "6379"
		}
	}
	if C.RedisClient.Password == "" {
		C.RedisClient.Password = os.Getenv("REDIS_PASSWORD")
	}

	if v := os.Getenv("EXTRACTOR_URL"); v != "" {
		C.Extractor.URL = v
	}
	if C.Extractor.TimeoutSec == 0 {
		C.Extractor.TimeoutSec = 30
	}
	if C.Extractor.OutboundRPS == 0 {
		C.Extractor.OutboundRPS = 5
	}
	if C.Extractor.OutboundBurst == 0 {
		C.Extractor.OutboundBurst = 10
	}
}

func initPolicies(C *Config) {
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			C.RateLimit.WindowSec = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			C.RateLimit.MaxRequests = n
		}
	}
	if C.RateLimit.WindowSec == 0 {
		C.RateLimit.WindowSec = 60
	}
	if C.RateLimit.MaxRequests == 0 {
		C.RateLimit.MaxRequests = 100
	}
	if C.RateLimit.DownloadMax == 0 {
		C.RateLimit.DownloadMax = 5
	}
	if C.RateLimit.IdleTTLSec == 0 {
		C.RateLimit.IdleTTLSec = 900
	}
	if C.RateLimit.CleanupSec == 0 {
		C.RateLimit.CleanupSec = 120
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			C.Cache.TTLSec = n
		}
	}
	if C.Cache.TTLSec == 0 {
		C.Cache.TTLSec = 300
	}
	if C.Cache.NegativeTTLSec == 0 {
		C.Cache.NegativeTTLSec = 30
	}
	if C.Cache.SweepSec == 0 {
		C.Cache.SweepSec = 120
	}

	if v := os.Getenv("MAX_STORAGE_GB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			C.Storage.MaxGB = f
		}
	}
	if C.Storage.MaxGB == 0 {
		C.Storage.MaxGB = 10
	}
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		C.Storage.Dir = v
	}
	if C.Storage.Dir == "" {
		C.Storage.Dir = "downloads"
	}

	if v := os.Getenv("BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			C.Batch.Concurrency = n
		}
	}
	if C.Batch.Concurrency == 0 {
		C.Batch.Concurrency = 10
	}
	if C.Batch.MaxItems == 0 {
		C.Batch.MaxItems = 50
	}
}

// RateWindow returns the configured default window as a duration.
func (r RateLimit) RateWindow() time.Duration {
	return time.Duration(r.WindowSec) * time.Second
}

// QuotaBytes converts the configured gigabyte ceiling to bytes.
func (s Storage) QuotaBytes() int64 {
	return int64(s.MaxGB * 1024 * 1024 * 1024)
}
