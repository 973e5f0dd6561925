package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                    string        `yaml:"port"`
	Env                     string        `yaml:"env"`
	JWTSecret               string        `yaml:"jwt_secret"`
	JWTTTL                  time.Duration `yaml:"jwt_ttl"`
	FirebaseCredentialsPath string        `yaml:"firebase_credentials_path"`
	PostgresURL             string        `yaml:"postgres_url"`
	MongoURI                string        `yaml:"mongo_uri"`
	MongoDatabase           string        `yaml:"mongo_database"`
	RedisAddr               string        `yaml:"redis_addr"`
	RedisPassword           string        `yaml:"redis_password"`
	MetricsPort             string        `yaml:"metrics_port"`
	Story                   Story         `yaml:"story"`
}

// Story holds the story lifecycle knobs
type Story struct {
	TTL             time.Duration `yaml:"ttl"`
	MaxVideoSeconds int           `yaml:"max_video_seconds"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// Load reads .env (if present) and the environment, then overlays the YAML
// file at path when one is given.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		JWTTTL:                  getDuration("JWT_TTL", 72*time.Hour),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresURL:             getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "socialmedia"),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		Story: Story{
			TTL:             getDuration("STORY_TTL", 24*time.Hour),
			MaxVideoSeconds: getInt("STORY_MAX_VIDEO_SECONDS", 30),
			SweepInterval:   getDuration("STORY_SWEEP_INTERVAL", 10*time.Minute),
		},
	}

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Debug reports whether verbose logging should be enabled
func (c *Config) Debug() bool {
	return c.Env == "development"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.Env == "production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		c.JWTSecret = "supersecretjwtkey"
	}
	if c.Story.TTL <= 0 {
		return fmt.Errorf("story ttl must be positive, got %s", c.Story.TTL)
	}
	if c.Story.SweepInterval <= 0 {
		return fmt.Errorf("story sweep interval must be positive, got %s", c.Story.SweepInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
