package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost   string
	HTTPPort   string
	BaseDomain string

	DatabaseURL string

	JWT        JWTConfig
	Tokens     TokenConfig
	Password   PasswordConfig
	SMTP       SMTPConfig
	S3         S3Config
	OpenAI     OpenAIConfig
	Redis      RedisConfig
	RateLimits RateLimitConfig
	Upload     UploadConfig

	LogFile string
}

type JWTConfig struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenConfig struct {
	ConfirmTTL time.Duration
	ResetTTL   time.Duration
}

type PasswordConfig struct {
	Policy     PasswordPolicy
	BcryptCost int
}

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type RedisConfig struct {
	Addr string
	DB   int
}

// RateLimitConfig holds the per-route limit specs in "N/period" form,
// e.g. "10/hour" or "5/minute".
type RateLimitConfig struct {
	Register string
	Verify   string
	Resend   string
	Login    string
	Refresh  string
	Forgot   string
	Reset    string
	UploadCV string
	Letter   string
}

type UploadConfig struct {
	MaxFileSizeMB int
}

type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// Validate reports the first policy rule the password breaks. Messages are
// user-facing and surface verbatim in the 422 response body.
func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("Password must be at least %d characters long", p.MinLength)
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return fmt.Errorf("Password cannot be longer than %d characters long", p.MaxLength)
	}

	var hasUpper, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		return errors.New("Password must contain at least one uppercase letter")
	}
	if p.RequireNumber && !hasNumber {
		return errors.New("Password must contain at least one number")
	}
	if p.RequireSpecial && !hasSpecial {
		return errors.New("Password must contain at least one special character")
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	return &Config{
		HTTPHost:    getEnv("HTTP_HOST", ""),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		BaseDomain:  getEnv("BASE_DOMAIN", "http://localhost:8080"),
		DatabaseURL: databaseURL,
		JWT: JWTConfig{
			Secret:     jwtSecret,
			Algorithm:  getEnv("JWT_ALGORITHM", "HS256"),
			AccessTTL:  getSecondsEnv("JWT_ACCESS_EXPIRE", time.Hour),
			RefreshTTL: getSecondsEnv("JWT_REFRESH_EXPIRE", 7*24*time.Hour),
		},
		Tokens: TokenConfig{
			ConfirmTTL: getSecondsEnv("CONFIRMATION_EXPIRE", time.Hour),
			ResetTTL:   getSecondsEnv("RESET_PASSWORD_EXPIRE", time.Hour),
		},
		Password: PasswordConfig{
			Policy:     loadPasswordPolicy(),
			BcryptCost: getIntEnv("BCRYPT_COST", 8),
		},
		SMTP: SMTPConfig{
			Host: getEnv("SMTP_HOST", "localhost"),
			Port: getIntEnv("SMTP_PORT", 587),
			User: getEnv("SMTP_USER", ""),
			Pass: getEnv("SMTP_PASS", ""),
			From: getEnv("SMTP_FROM", "no-reply@letterstack.io"),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "eu-central-1"),
			Bucket:          getEnv("S3_BUCKET_NAME", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
			DB:   getIntEnv("REDIS_DB", 0),
		},
		RateLimits: RateLimitConfig{
			Register: getEnv("RATE_LIMIT_REGISTER", "10/hour"),
			Verify:   getEnv("RATE_LIMIT_VERIFY", "10/hour"),
			Resend:   getEnv("RATE_LIMIT_RESEND", "5/hour"),
			Login:    getEnv("RATE_LIMIT_LOGIN", "10/minute"),
			Refresh:  getEnv("RATE_LIMIT_REFRESH", "60/hour"),
			Forgot:   getEnv("RATE_LIMIT_FORGOT_PASSWORD", "5/hour"),
			Reset:    getEnv("RATE_LIMIT_RESET_PASSWORD", "10/hour"),
			UploadCV: getEnv("RATE_LIMIT_UPLOAD_CV", "10/hour"),
			Letter:   getEnv("RATE_LIMIT_LETTER", "5/hour"),
		},
		Upload: UploadConfig{
			MaxFileSizeMB: getIntEnv("MAX_FILE_SIZE_MB", 5),
		},
		LogFile: getEnv("LOG_FILE", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		MaxLength:        getIntEnv("PASSWORD_MAX_LENGTH", 32),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", true),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", true),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", true),
	}
}
