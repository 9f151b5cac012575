// Package config loads gateway configuration from the environment and
// the optional downstream services file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServiceTarget is one statically configured downstream service.
type ServiceTarget struct {
	Name           string `yaml:"name"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Config is the full gateway configuration. Backend endpoints are each
// independently optional; an empty value means that backend is not
// deployed.
type Config struct {
	Port string

	DatabaseURL   string
	RedisEndpoint string

	DynamoTable  string
	AWSRegion    string
	AWSEndpoint  string
	AWSAccessKey string
	AWSSecretKey string

	RateLimit int

	Services []ServiceTarget
}

// FromEnv reads configuration from environment variables. The service
// table comes from SERVICES_FILE when set, else the built-in defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8000"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisEndpoint: getEnv("REDIS_ENDPOINT", ""),
		DynamoTable:   getEnv("DYNAMO_TABLE_NAME", ""),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:   getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		RateLimit:     100,
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT %q", v)
		}
		cfg.RateLimit = limit
	}

	if path := os.Getenv("SERVICES_FILE"); path != "" {
		services, err := LoadServices(path)
		if err != nil {
			return nil, err
		}
		cfg.Services = services
	} else {
		cfg.Services = DefaultServices()
	}

	return cfg, nil
}

// DefaultServices is the built-in downstream service table.
func DefaultServices() []ServiceTarget {
	return []ServiceTarget{
		{Name: "user-service", Host: "user-service.local", Port: 8081, TimeoutSeconds: 30},
		{Name: "order-service", Host: "order-service.local", Port: 8082, TimeoutSeconds: 30},
		{Name: "notification-service", Host: "notification-service.local", Port: 8083, TimeoutSeconds: 30},
	}
}

type servicesFile struct {
	Services []ServiceTarget `yaml:"services"`
}

// LoadServices reads a service table from a YAML file.
func LoadServices(path string) ([]ServiceTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}

	var f servicesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse services file: %w", err)
	}

	for i, s := range f.Services {
		if s.Name == "" || s.Host == "" || s.Port <= 0 {
			return nil, fmt.Errorf("invalid service entry at index %d", i)
		}
		if s.TimeoutSeconds <= 0 {
			f.Services[i].TimeoutSeconds = 30
		}
	}

	return f.Services, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
