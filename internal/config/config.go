package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Games struct {
		Root       string `yaml:"root"`
		Default    string `yaml:"default"`
		ConfigTTL  string `yaml:"config_ttl"`
		AuthorGame string `yaml:"author_game"`
	} `yaml:"games"`
	Daily struct {
		Game string `yaml:"game"`
		At   string `yaml:"at"` // local time of day, "15:04"
	} `yaml:"daily"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Telemetry struct {
		Buffer int `yaml:"buffer"`
	} `yaml:"telemetry"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty
// or malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
