package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultCodePepper is the development fallback for OTP_CODE_PEPPER.
const DefaultCodePepper = "change-me"

// ErrDefaultPepper is returned by Validate in production when OTP_CODE_PEPPER is unset.
var ErrDefaultPepper = errors.New("OTP_CODE_PEPPER must be set in production")

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort          string
	AppEnv           string
	LogLevel         string
	AWSRegion        string
	AWSEndpointURL   string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID   string
	AWSSecretKey     string
	DynamoTables     DynamoTables
	JWTPublicKeyPath string
	SMTPHost         string
	SMTPPort         string
	SMTPFrom         string
	SMTPUsername     string
	SMTPPassword     string
	SNSRegion        string
	VoiceRegion      string
	VoiceOrigin      string   // pinpoint origination identity (phone number or pool id)
	AllowedOrigins   []string // CORS allowed origins

	// TTLStore selects the verification code backend: "dynamo", "redis" or "memory".
	TTLStore      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Verification Verification
	Stream       Stream

	NATSURL       string // empty disables the consumer
	NATSSubject   string
	NATSQueue     string
	SenderTimeout time.Duration
}

// DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	Notifications     string
	VerificationCodes string
}

// Verification holds the per-purpose code validity and generator settings.
type Verification struct {
	CodeLength       int
	CodePepper       string
	EmailTTL         time.Duration
	PhoneTTL         time.Duration
	PasswordResetTTL time.Duration
}

// Stream configures per-subscriber buffering on the live event bus.
type Stream struct {
	BufferSize     int
	OverflowPolicy string // "close" | "drop_oldest"
	PingInterval   time.Duration
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			Notifications:     getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
		},
		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		SMTPHost:         getEnv("SMTP_HOST", "localhost"),
		SMTPPort:         getEnv("SMTP_PORT", "1025"),
		SMTPFrom:         getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),
		VoiceRegion:      getEnv("VOICE_REGION", "us-east-1"),
		VoiceOrigin:      getEnv("VOICE_ORIGINATION_IDENTITY", ""),
		AllowedOrigins:   strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TTLStore:         getEnv("TTL_STORE", "dynamo"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		Verification: Verification{
			CodeLength:       getEnvInt("OTP_CODE_LENGTH", 6),
			CodePepper:       getEnv("OTP_CODE_PEPPER", DefaultCodePepper),
			EmailTTL:         getEnvDuration("OTP_EMAIL_TTL", 15*time.Minute),
			PhoneTTL:         getEnvDuration("OTP_PHONE_TTL", 5*time.Minute),
			PasswordResetTTL: getEnvDuration("OTP_PASSWORD_RESET_TTL", 15*time.Minute),
		},
		Stream: Stream{
			BufferSize:     getEnvInt("STREAM_BUFFER_SIZE", 16),
			OverflowPolicy: getEnv("STREAM_OVERFLOW_POLICY", "close"),
			PingInterval:   getEnvDuration("STREAM_PING_INTERVAL", 30*time.Second),
		},
		NATSURL:       getEnv("NATS_URL", ""),
		NATSSubject:   getEnv("NATS_SUBJECT", "notifications.created"),
		NATSQueue:     getEnv("NATS_QUEUE", "notification-dispatch"),
		SenderTimeout: getEnvDuration("SENDER_TIMEOUT", 10*time.Second),
	}
}

// Validate rejects settings that are only acceptable outside production.
func (c *Config) Validate() error {
	if c.AppEnv == "production" && c.Verification.CodePepper == DefaultCodePepper {
		return ErrDefaultPepper
	}
	return nil
}

// UsesDefaultPepper reports whether codes are keyed with the development pepper.
func (c *Config) UsesDefaultPepper() bool {
	return c.Verification.CodePepper == DefaultCodePepper
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "15m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
