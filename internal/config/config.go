package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Payment  PaymentConfig  `yaml:"payment"`
	Device   DeviceConfig   `yaml:"device"`
	Usage    UsageConfig    `yaml:"usage"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// PaymentConfig configures the external payment gateway.
type PaymentConfig struct {
	BaseURL        string `yaml:"base_url"`
	IntegrationID  string `yaml:"integration_id"`
	IntegrationKey string `yaml:"integration_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DeviceConfig configures the meter controller relay. The controller is an
// opaque byte-stream sink; Addr is a host:port reachable over TCP (a serial
// bridge in deployment). An empty Addr disables the relay.
type DeviceConfig struct {
	Addr               string `yaml:"addr"`
	DialTimeoutSeconds int    `yaml:"dial_timeout_seconds"`
}

// UsageConfig configures the usage decrement job.
type UsageConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	UnitsPerTick    string `yaml:"units_per_tick"`
}

type LogConfig struct {
	Dir string `yaml:"dir"`
}

// Load loads configuration from file and environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Override with environment variables if present
	cfg.loadFromEnv()
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}

	// Database
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.DBName = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	// JWT
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("JWT_EXPIRE_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.JWT.ExpireHours = hours
		}
	}

	// Payment gateway
	if v := os.Getenv("PAYMENT_BASE_URL"); v != "" {
		c.Payment.BaseURL = v
	}
	if v := os.Getenv("PAYMENT_INTEGRATION_ID"); v != "" {
		c.Payment.IntegrationID = v
	}
	if v := os.Getenv("PAYMENT_INTEGRATION_KEY"); v != "" {
		c.Payment.IntegrationKey = v
	}

	// Device relay
	if v := os.Getenv("DEVICE_ADDR"); v != "" {
		c.Device.Addr = v
	}

	// Usage job
	if v := os.Getenv("USAGE_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Usage.IntervalSeconds = secs
		}
	}
	if v := os.Getenv("USAGE_UNITS_PER_TICK"); v != "" {
		c.Usage.UnitsPerTick = v
	}
}

func (c *Config) applyDefaults() {
	if c.JWT.ExpireHours == 0 {
		c.JWT.ExpireHours = 24
	}
	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 15
	}
	if c.Device.DialTimeoutSeconds == 0 {
		c.Device.DialTimeoutSeconds = 5
	}
	if c.Usage.IntervalSeconds == 0 {
		c.Usage.IntervalSeconds = 10
	}
	if c.Usage.UnitsPerTick == "" {
		c.Usage.UnitsPerTick = "123"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
}

// UsageInterval returns the decrement job firing interval
func (c *UsageConfig) UsageInterval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}
