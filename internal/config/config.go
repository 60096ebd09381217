package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    string

	// Empty DatabaseURL runs on the in-memory store, seeded from SeedFile.
	DatabaseURL string
	SeedFile    string
	AMQPURL     string

	EngineWebhookURL string
	EngineStatusURL  string
	EngineToken      string
	CallbackToken    string
	AsyncCallbacks   bool

	DefaultSendDelay time.Duration
	ScheduleHorizon  time.Duration
	ScheduleBatch    int
	DispatchBatch    int
	DispatchTimeout  time.Duration
	RetryMax         int
	RetryBase        time.Duration
	RetryMaxDelay    time.Duration
	LeaseTTL         time.Duration
	LeaseWait        time.Duration
	MismatchPolicy   usecase.MismatchPolicy

	TickInterval   time.Duration
	PollInterval   time.Duration
	PollBatch      int
	WorkerParallel int

	MailHost      string
	MailPort      int
	MailUser      string
	MailPass      string
	MailFrom      string
	OperatorEmail string

	AllowedOrigins []string

	ScheduleConfig string
	Window         usecase.SendWindow
}

// Load reads .env (when present) and the process environment. The optional
// SCHEDULE_CONFIG file supplies the send window.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		Port:        getEnvWithDefault("PORT", "8080"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SeedFile:    strings.TrimSpace(os.Getenv("SEED_FILE")),
		AMQPURL:     strings.TrimSpace(os.Getenv("AMQP_URL")),

		EngineWebhookURL: strings.TrimSpace(os.Getenv("ENGINE_WEBHOOK_URL")),
		EngineStatusURL:  strings.TrimSpace(os.Getenv("ENGINE_STATUS_URL")),
		EngineToken:      strings.TrimSpace(os.Getenv("ENGINE_TOKEN")),
		CallbackToken:    strings.TrimSpace(os.Getenv("CALLBACK_TOKEN")),
		AsyncCallbacks:   getEnvBool("ASYNC_CALLBACKS", false),

		MismatchPolicy: usecase.MismatchPolicy(getEnvWithDefault("SESSION_MISMATCH_POLICY", string(usecase.MismatchWarn))),

		MailHost:      os.Getenv("MAIL_HOST"),
		MailUser:      os.Getenv("MAIL_USER"),
		MailPass:      os.Getenv("MAIL_PASS"),
		MailFrom:      getEnvWithDefault("MAIL_FROM", os.Getenv("MAIL_USER")),
		OperatorEmail: os.Getenv("OPERATOR_EMAIL"),

		ScheduleConfig: strings.TrimSpace(os.Getenv("SCHEDULE_CONFIG")),
	}

	var errs []error
	intVar := func(dst *int, key string, def int) {
		v, err := getEnvInt(key, def)
		errs = append(errs, err)
		*dst = v
	}
	durVar := func(dst *time.Duration, key string, def time.Duration) {
		v, err := getEnvDuration(key, def)
		errs = append(errs, err)
		*dst = v
	}
	minutesVar := func(dst *time.Duration, key string, def int) {
		v, err := getEnvInt(key, def)
		errs = append(errs, err)
		*dst = time.Duration(v) * time.Minute
	}

	minutesVar(&c.DefaultSendDelay, "SEND_DELAY_MINUTES", 5)
	durVar(&c.ScheduleHorizon, "SCHEDULE_HORIZON", 7*24*time.Hour)
	intVar(&c.ScheduleBatch, "SCHEDULE_BATCH", 500)
	intVar(&c.DispatchBatch, "DISPATCH_BATCH_SIZE", 25)
	durVar(&c.DispatchTimeout, "DISPATCH_TIMEOUT", 5*time.Second)
	intVar(&c.RetryMax, "DISPATCH_RETRY_MAX", 3)
	durVar(&c.RetryBase, "DISPATCH_RETRY_BASE", time.Minute)
	durVar(&c.RetryMaxDelay, "DISPATCH_RETRY_MAX_DELAY", 30*time.Minute)
	durVar(&c.LeaseTTL, "LEASE_TTL", 30*time.Second)
	durVar(&c.LeaseWait, "LEASE_WAIT", 2*time.Second)
	durVar(&c.TickInterval, "TICK_INTERVAL", time.Minute)
	durVar(&c.PollInterval, "POLL_INTERVAL", 5*time.Minute)
	intVar(&c.PollBatch, "POLL_BATCH", 200)
	intVar(&c.WorkerParallel, "WORKER_PARALLELISM", 4)
	intVar(&c.MailPort, "MAIL_PORT", 587)

	origins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, o)
		}
	}

	if c.ScheduleConfig != "" {
		w, err := LoadSchedule(c.ScheduleConfig)
		errs = append(errs, err)
		if w != nil {
			c.Window = *w
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.EngineWebhookURL == "" {
		errs = append(errs, errors.New("ENGINE_WEBHOOK_URL is required"))
	}
	if c.Environment == "production" {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if c.CallbackToken == "" {
			errs = append(errs, errors.New("CALLBACK_TOKEN is required in production"))
		}
	}
	if c.AsyncCallbacks && c.AMQPURL == "" {
		errs = append(errs, errors.New("ASYNC_CALLBACKS needs AMQP_URL"))
	}
	if c.DefaultSendDelay <= 0 {
		errs = append(errs, errors.New("SEND_DELAY_MINUTES must be positive"))
	}
	if c.DispatchBatch <= 0 {
		errs = append(errs, errors.New("DISPATCH_BATCH_SIZE must be positive"))
	}
	if c.RetryMax <= 0 {
		errs = append(errs, errors.New("DISPATCH_RETRY_MAX must be positive"))
	}
	if c.DispatchTimeout <= 0 {
		errs = append(errs, errors.New("DISPATCH_TIMEOUT must be positive"))
	}
	if c.LeaseTTL < c.DispatchTimeout {
		errs = append(errs, fmt.Errorf("LEASE_TTL (%s) must cover DISPATCH_TIMEOUT (%s)", c.LeaseTTL, c.DispatchTimeout))
	}
	if !c.MismatchPolicy.Valid() {
		errs = append(errs, fmt.Errorf("SESSION_MISMATCH_POLICY %q must be warn or strict", c.MismatchPolicy))
	}
	return errors.Join(errs...)
}

func (c *Config) InMemory() bool {
	return c.DatabaseURL == ""
}

func (c *Config) MailEnabled() bool {
	return c.MailHost != "" && c.OperatorEmail != ""
}

func (c *Config) ScheduleSettings() usecase.ScheduleSettings {
	return usecase.ScheduleSettings{
		Window:       c.Window,
		DefaultDelay: c.DefaultSendDelay,
		Horizon:      c.ScheduleHorizon,
		MaxBatch:     c.ScheduleBatch,
		LeaseTTL:     c.LeaseTTL,
	}
}

func (c *Config) DispatchSettings() usecase.DispatchSettings {
	return usecase.DispatchSettings{
		BatchSize: c.DispatchBatch,
		Timeout:   c.DispatchTimeout,
		LeaseTTL:  c.LeaseTTL,
		Retry: usecase.RetryPolicy{
			MaxAttempts: c.RetryMax,
			BaseDelay:   c.RetryBase,
			MaxDelay:    c.RetryMaxDelay,
		},
	}
}

// scheduleFile is the SCHEDULE_CONFIG document.
type scheduleFile struct {
	Timezone     string   `yaml:"timezone"`
	StartHour    int      `yaml:"start_hour"`
	EndHour      int      `yaml:"end_hour"`
	SkipWeekends bool     `yaml:"skip_weekends"`
	Holidays     []string `yaml:"holidays"`
}

func LoadSchedule(path string) (*usecase.SendWindow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule config: %w", err)
	}
	var f scheduleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse schedule config %s: %w", path, err)
	}

	loc := time.UTC
	if f.Timezone != "" {
		if loc, err = time.LoadLocation(f.Timezone); err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
	}
	if f.StartHour < 0 || f.StartHour > 23 || f.EndHour < 0 || f.EndHour > 24 {
		return nil, fmt.Errorf("schedule hours out of range: %d-%d", f.StartHour, f.EndHour)
	}
	if f.EndHour != 0 && f.EndHour <= f.StartHour {
		return nil, fmt.Errorf("schedule end_hour %d must be after start_hour %d", f.EndHour, f.StartHour)
	}

	holidays := make(map[string]bool, len(f.Holidays))
	for _, h := range f.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return nil, fmt.Errorf("holiday %q: want YYYY-MM-DD", h)
		}
		holidays[h] = true
	}

	return &usecase.SendWindow{
		Location:     loc,
		StartHour:    f.StartHour,
		EndHour:      f.EndHour,
		SkipWeekends: f.SkipWeekends,
		Holidays:     holidays,
	}, nil
}

func getEnvWithDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getEnvInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
