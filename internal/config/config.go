package config

import (
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort            string `env:"HTTP_PORT" envDefault:"8080"`
	PublicBaseURL       string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RunMigrations       bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	LLMAPIKey           string `env:"LLM_API_KEY,required"`
	LLMBaseURL          string `env:"LLM_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai"`
	LLMModel            string `env:"LLM_MODEL" envDefault:"gemini-flash-latest"`
	LLMEmbeddingModel   string `env:"LLM_EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	HistoryContextTurns int    `env:"HISTORY_CONTEXT_TURNS" envDefault:"0"`
	HistoryMaxEntries   int    `env:"HISTORY_MAX_ENTRIES" envDefault:"100"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"1440"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	CookieSecure         bool   `env:"COOKIE_SECURE" envDefault:"false"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"تبيّن"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	StaffEmail   string `env:"STAFF_EMAIL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	FFmpegPath   string  `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	ScratchDir   string  `env:"SCRATCH_DIR"`
	MaxUploadMB  int64   `env:"MAX_UPLOAD_MB" envDefault:"25"`
	WhisperMode  string  `env:"WHISPER_MODE" envDefault:"http"`
	WhisperURL   string  `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1"`
	WhisperModel string  `env:"WHISPER_MODEL" envDefault:"Systran/faster-whisper-small"`
	WhisperBin   string  `env:"WHISPER_BIN" envDefault:"whisper-cli"`
	WhisperPath  string  `env:"WHISPER_MODEL_PATH"`
	WhisperKey   string  `env:"WHISPER_API_KEY"`
	TTSProvider  string  `env:"TTS_PROVIDER" envDefault:"google"`
	TTSBaseURL   string  `env:"TTS_BASE_URL"`
	TTSAPIKey    string  `env:"TTS_API_KEY"`
	TTSVoice     string  `env:"TTS_VOICE" envDefault:"alloy"`
	SpeedFactor  float64 `env:"SPEED_FACTOR" envDefault:"1.3"`

	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	TrustedProxies     []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if math.IsNaN(c.SpeedFactor) || c.SpeedFactor <= 0 || c.SpeedFactor > 100 {
		return fmt.Errorf("SPEED_FACTOR must be in (0, 100], got %v", c.SpeedFactor)
	}
	return nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLMinutes) * time.Minute
}

// MaxUploadBytes limita el tamaño de audios subidos.
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 25 << 20
	}
	return c.MaxUploadMB << 20
}
