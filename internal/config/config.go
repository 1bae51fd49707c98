package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSAddr         string
	JWTSecret        string
	JWTRefreshSecret string

	AIProvider      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	MonthlyCreditLimit int

	StudentPollInterval time.Duration
	TeacherPollInterval time.Duration
	PollMaxFailures     int

	SessionRetention time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("QUILL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Quill API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("credit.monthly_limit", 500)
	v.SetDefault("sync.student_poll_interval", "5s")
	v.SetDefault("sync.teacher_poll_interval", "10s")
	v.SetDefault("sync.poll_max_failures", 5)
	v.SetDefault("session.retention", "24h")

	studentInterval, err := time.ParseDuration(v.GetString("sync.student_poll_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid student poll interval: %w", err)
	}
	teacherInterval, err := time.ParseDuration(v.GetString("sync.teacher_poll_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid teacher poll interval: %w", err)
	}
	retention, err := time.ParseDuration(v.GetString("session.retention"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid session retention: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSAddr:            v.GetString("nats.addr"),
		JWTSecret:           v.GetString("jwt.secret"),
		JWTRefreshSecret:    v.GetString("jwt.refresh_secret"),
		AIProvider:          strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		AnthropicAPIKey:     v.GetString("anthropic_api_key"),
		MonthlyCreditLimit:  v.GetInt("credit.monthly_limit"),
		StudentPollInterval: studentInterval,
		TeacherPollInterval: teacherInterval,
		PollMaxFailures:     v.GetInt("sync.poll_max_failures"),
		SessionRetention:    retention,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.MonthlyCreditLimit <= 0 {
		cfg.MonthlyCreditLimit = 500
	}

	if cfg.PollMaxFailures <= 0 {
		cfg.PollMaxFailures = 5
	}

	return cfg, nil
}
