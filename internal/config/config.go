package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type PushConfig struct {
	AppID      string
	APIKey     string
	BaseURL    string
	RatePerSec float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type S3Config struct {
	Bucket        string
	Region        string
	PublicBaseURL string
}

type Config struct {
	Env       string
	Port      string
	PublicURL string

	DBDSN       string
	StoreDriver string // sqlite | mongo
	MongoURI    string
	MongoDB     string

	LogLevel string
	LogFile  string

	BcryptCost   int
	InviteSecret string
	InviteTTL    time.Duration

	Push PushConfig

	RabbitURL        string
	ProductQueue     string
	ConsumeInProcess bool

	Redis    RedisConfig
	DedupTTL time.Duration

	S3 S3Config

	SendGridKey string
	MailFrom    string
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:       envStr("APP_ENV", "development"),
		Port:      envStr("PORT", "8080"),
		PublicURL: strings.TrimRight(envStr("PUBLIC_URL", "http://localhost:8080"), "/"),

		DBDSN:       envStr("DB_DSN", "onsalenow.db"), // sqlite file in project root
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", "sqlite")),
		MongoURI:    envStr("MONGO_URI", "mongodb://localhost:27017/"),
		MongoDB:     envStr("MONGO_DB", "onsalenow"),

		LogLevel: envStr("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		BcryptCost:   envInt("BCRYPT_COST", 12),
		InviteSecret: os.Getenv("INVITE_SECRET"),
		InviteTTL:    envDur("INVITE_TTL", 72*time.Hour),

		Push: PushConfig{
			AppID:      os.Getenv("PUSH_APP_ID"),
			APIKey:     os.Getenv("PUSH_API_KEY"),
			BaseURL:    strings.TrimRight(envStr("PUSH_BASE_URL", "https://api.onesignal.com"), "/"),
			RatePerSec: envFloat("PUSH_RATE_PER_SEC", 5),
		},

		RabbitURL:        os.Getenv("RABBITMQ_URL"),
		ProductQueue:     envStr("PRODUCT_QUEUE", "product.created"),
		ConsumeInProcess: envBool("CONSUME_IN_PROCESS", true),

		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		DedupTTL: envDur("DEDUP_TTL", 7*24*time.Hour),

		S3: S3Config{
			Bucket:        os.Getenv("S3_BUCKET"),
			Region:        envStr("S3_REGION", "us-east-1"),
			PublicBaseURL: strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
		},

		SendGridKey: os.Getenv("SENDGRID_API_KEY"),
		MailFrom:    envStr("MAIL_FROM", "no-reply@onsalenow.test"),
	}
}

// Production reports whether the process runs with production settings.
func (c Config) Production() bool { return c.Env == "production" }

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
