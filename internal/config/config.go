package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Twilio     TwilioConfig     `mapstructure:"twilio"`
	Firebase   FirebaseConfig   `mapstructure:"firebase"`
	GCS        GCSConfig        `mapstructure:"gcs"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Background BackgroundConfig `mapstructure:"background"`
	OTP        OTPConfig        `mapstructure:"otp"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Emergency  EmergencyConfig  `mapstructure:"emergency"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	RefreshSecret     string `mapstructure:"refresh_secret"`
	AccessExpiryHours int    `mapstructure:"access_expiry_hours"`
	RefreshExpiryDays int    `mapstructure:"refresh_expiry_days"`
}

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
	Enabled    bool   `mapstructure:"enabled"`
}

type FirebaseConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	Enabled         bool   `mapstructure:"enabled"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	URLExpiryMins   int    `mapstructure:"url_expiry_mins"`
	Enabled         bool   `mapstructure:"enabled"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type BackgroundConfig struct {
	SweepIntervalSecs    int `mapstructure:"sweep_interval_secs"`
	ReminderIntervalMins int `mapstructure:"reminder_interval_mins"`
}

type OTPConfig struct {
	Length            int `mapstructure:"length"`
	ExpiryMins        int `mapstructure:"expiry_mins"`
	MaxSendsPerWindow int `mapstructure:"max_sends_per_window"`
	WindowMins        int `mapstructure:"window_mins"`
}

type BillingConfig struct {
	UPIVPA    string `mapstructure:"upi_vpa"`
	PayeeName string `mapstructure:"payee_name"`
}

type EmergencyConfig struct {
	ContactNumber string `mapstructure:"contact_number"`
}

func LoadConfig() *Config {
	config := &Config{}

	// Set default values
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "3090")
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "dev")
	viper.SetDefault("database.password", "devpass")
	viper.SetDefault("database.name", "society")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("jwt.secret", "your-super-secret-jwt-key-change-in-production")
	viper.SetDefault("jwt.refresh_secret", "your-refresh-token-secret-here")
	viper.SetDefault("jwt.access_expiry_hours", 8)
	viper.SetDefault("jwt.refresh_expiry_days", 30)

	viper.SetDefault("twilio.enabled", false)
	viper.SetDefault("firebase.enabled", false)
	viper.SetDefault("gcs.enabled", false)
	viper.SetDefault("gcs.url_expiry_mins", 15)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.enabled", false)

	viper.SetDefault("background.sweep_interval_secs", 60)
	viper.SetDefault("background.reminder_interval_mins", 1440)

	viper.SetDefault("otp.length", 6)
	viper.SetDefault("otp.expiry_mins", 5)
	viper.SetDefault("otp.max_sends_per_window", 3)
	viper.SetDefault("otp.window_mins", 15)

	viper.SetDefault("billing.upi_vpa", "")
	viper.SetDefault("billing.payee_name", "")

	viper.SetDefault("emergency.contact_number", "")

	// Read from environment variables
	viper.AutomaticEnv()

	if host := os.Getenv("SERVER_HOST"); host != "" {
		viper.Set("server.host", host)
	}
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		viper.Set("server.mode", mode)
	}

	// Database environment variables
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		viper.Set("database.host", dbHost)
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		viper.Set("database.port", dbPort)
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		viper.Set("database.user", dbUser)
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		viper.Set("database.password", dbPassword)
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		viper.Set("database.name", dbName)
	}
	if dbSSLMode := os.Getenv("DB_SSLMODE"); dbSSLMode != "" {
		viper.Set("database.sslmode", dbSSLMode)
	}

	// Redis environment variables
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		viper.Set("redis.host", redisHost)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		viper.Set("redis.port", redisPort)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}

	// JWT environment variables
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		viper.Set("jwt.secret", jwtSecret)
	}
	if refreshSecret := os.Getenv("JWT_REFRESH_SECRET"); refreshSecret != "" {
		viper.Set("jwt.refresh_secret", refreshSecret)
	}

	// Twilio environment variables
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		viper.Set("twilio.account_sid", sid)
		viper.Set("twilio.enabled", true)
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		viper.Set("twilio.auth_token", token)
	}
	if from := os.Getenv("TWILIO_FROM_NUMBER"); from != "" {
		viper.Set("twilio.from_number", from)
	}

	// Firebase environment variables
	if credsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE"); credsFile != "" {
		viper.Set("firebase.credentials_file", credsFile)
		viper.Set("firebase.enabled", true)
	}
	if credsJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON"); credsJSON != "" {
		viper.Set("firebase.credentials_json", credsJSON)
		viper.Set("firebase.enabled", true)
	}

	// Emergency environment variables
	if contact := os.Getenv("EMERGENCY_CONTACT_NUMBER"); contact != "" {
		viper.Set("emergency.contact_number", contact)
	}

	// Billing environment variables
	if vpa := os.Getenv("BILLING_UPI_VPA"); vpa != "" {
		viper.Set("billing.upi_vpa", vpa)
	}
	if payee := os.Getenv("BILLING_PAYEE_NAME"); payee != "" {
		viper.Set("billing.payee_name", payee)
	}

	// GCS environment variables
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		viper.Set("gcs.bucket", bucket)
		viper.Set("gcs.enabled", true)
	}
	if credsFile := os.Getenv("GCS_CREDENTIALS_FILE"); credsFile != "" {
		viper.Set("gcs.credentials_file", credsFile)
	}
	if credsJSON := os.Getenv("GCS_CREDENTIALS_JSON"); credsJSON != "" {
		viper.Set("gcs.credentials_json", credsJSON)
	}

	// NATS environment variables
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		viper.Set("nats.url", natsURL)
		viper.Set("nats.enabled", true)
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	return config
}

// GetDSN builds the postgres connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisAddr returns host:port for the redis client.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// SweepInterval returns the background sweep period.
func (c *BackgroundConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// ReminderInterval returns the billing reminder period.
func (c *BackgroundConfig) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalMins) * time.Minute
}

// Expiry returns the OTP time-to-live.
func (c *OTPConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryMins) * time.Minute
}

// Window returns the OTP send rate-limit window.
func (c *OTPConfig) Window() time.Duration {
	return time.Duration(c.WindowMins) * time.Minute
}
