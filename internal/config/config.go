package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database *Database
	Service  *Service
	Grading  *Grading
}

type Database struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"markwise"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type Service struct {
	Address         string        `envconfig:"MARKWISE_ADDRESS" default:":8080"`
	NatsURL         string        `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	LogLevel        string        `envconfig:"MARKWISE_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"MARKWISE_LOG_FORMAT" default:"json"`
	AdminToken      string        `envconfig:"MARKWISE_ADMIN_TOKEN" default:""`
	WebhookURL      string        `envconfig:"MARKWISE_NOTIFY_WEBHOOK_URL" default:""`
	WebhookChannel  string        `envconfig:"MARKWISE_NOTIFY_CHANNEL" default:"#grading-ops"`
	ReadTimeout     time.Duration `envconfig:"MARKWISE_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"MARKWISE_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"MARKWISE_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"MARKWISE_SHUTDOWN_TIMEOUT" default:"20s"`
}

// Grading holds the pipeline tunables. Defaults live here rather than
// as constants so operators can adjust them without a rebuild.
type Grading struct {
	OpenAIKey       string        `envconfig:"OPENAI_API_KEY" default:""`
	Models          []string      `envconfig:"MARKWISE_GRADING_MODELS" default:"gpt-4o-mini,gpt-4o-mini,gpt-4o"`
	Temperature     float64       `envconfig:"MARKWISE_GRADING_TEMPERATURE" default:"0.3"`
	PriceCents      int64         `envconfig:"MARKWISE_GRADING_PRICE_CENTS" default:"100"`
	SignupBonus     int64         `envconfig:"MARKWISE_SIGNUP_BONUS_CENTS" default:"500"`
	MaxRetries      int           `envconfig:"MARKWISE_RUN_MAX_RETRIES" default:"2"`
	RunTimeout      time.Duration `envconfig:"MARKWISE_RUN_TIMEOUT" default:"90s"`
	OverallTimeout  time.Duration `envconfig:"MARKWISE_GRADING_TIMEOUT" default:"5m"`
	DeviationBand   float64       `envconfig:"MARKWISE_DEVIATION_BAND" default:"10"`
	RangeBuffer     float64       `envconfig:"MARKWISE_RANGE_BUFFER" default:"3"`
	WorkerSlots     int           `envconfig:"MARKWISE_WORKER_SLOTS" default:"4"`
	ReaperInterval  time.Duration `envconfig:"MARKWISE_REAPER_INTERVAL" default:"5m"`
	QueuedStale     time.Duration `envconfig:"MARKWISE_QUEUED_STALE_AFTER" default:"10m"`
	ProcessingStale time.Duration `envconfig:"MARKWISE_PROCESSING_STALE_AFTER" default:"30m"`
}

func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
