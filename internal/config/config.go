package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir        string   `json:"data_dir"`
	LogLevel       string   `json:"log_level"`
	Listen         string   `json:"listen"`
	AllowedOrigins []string `json:"allowed_origins"`
	Presence       struct {
		SweepSchedule string `json:"sweep_schedule"`
		StaleAfterSec int    `json:"stale_after_sec"`
		IdleRoomSec   int    `json:"idle_room_sec"`
	} `json:"presence"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".collabrelay"),
		LogLevel: "info",
		Listen:   "127.0.0.1:8787",
	}
	cfg.Presence.SweepSchedule = "@every 30s"
	// Staleness eviction is an opt-in policy: zero disables it.
	cfg.Presence.StaleAfterSec = 0
	cfg.Presence.IdleRoomSec = 0
	return cfg
}

// Load reads the config file, writing defaults on first run, then applies
// environment overrides (highest precedence).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	if listen := os.Getenv("COLLABRELAY_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	return cfg, nil
}

// Save writes the config atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
