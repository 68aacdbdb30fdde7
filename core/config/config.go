package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // minutes
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	Issuer    string        `mapstructure:"issuer"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
}

type PaymentConfig struct {
	Provider      string        `mapstructure:"provider"` // chapa | paystack
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	BaseURL       string        `mapstructure:"base_url"`
	CallbackURL   string        `mapstructure:"callback_url"`
	ReturnURL     string        `mapstructure:"return_url"`
	Currency      string        `mapstructure:"currency"`
	Amount        float64       `mapstructure:"amount"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type CalendarConfig struct {
	ClientEmail string        `mapstructure:"client_email"`
	PrivateKey  string        `mapstructure:"private_key"`
	CalendarID  string        `mapstructure:"calendar_id"`
	Subject     string        `mapstructure:"subject"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type BookingConfig struct {
	PaymentRequired            bool          `mapstructure:"payment_required"`
	RequirePaymentBeforeAccept bool          `mapstructure:"require_payment_before_accept"`
	ReminderLeadTime           time.Duration `mapstructure:"reminder_lead_time"`
}

type QueueConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
	RedisDB     int  `mapstructure:"redis_db"`
}

type BrokerConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type StorageConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

var (
	instance *Config
	mu       sync.RWMutex
)

// Init loads .env (if present), then config.yaml (if present), then environment variables.
// Nested keys map to env vars with dots replaced by underscores, e.g. DATABASE_HOST.
func Init() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "consult-booking")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "consult_booking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "consult-booking")
	v.SetDefault("jwt.access_ttl", time.Hour)

	v.SetDefault("payment.provider", "chapa")
	v.SetDefault("payment.secret_key", "")
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.base_url", "")
	v.SetDefault("payment.callback_url", "")
	v.SetDefault("payment.return_url", "")
	v.SetDefault("payment.currency", "ETB")
	v.SetDefault("payment.amount", 0)
	v.SetDefault("payment.timeout", 15*time.Second)

	v.SetDefault("calendar.client_email", "")
	v.SetDefault("calendar.private_key", "")
	v.SetDefault("calendar.calendar_id", "primary")
	v.SetDefault("calendar.subject", "")
	v.SetDefault("calendar.timeout", 10*time.Second)

	v.SetDefault("booking.payment_required", false)
	v.SetDefault("booking.require_payment_before_accept", false)
	v.SetDefault("booking.reminder_lead_time", time.Hour)

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.redis_db", 1)

	v.SetDefault("broker.url", "")
	v.SetDefault("broker.exchange", "booking.events")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
}

func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("config: Get called before Init")
	}
	return instance
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}

// Set replaces the loaded configuration. Used by tests and embedded callers.
func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
