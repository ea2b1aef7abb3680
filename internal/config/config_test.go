package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:8787" {
		t.Errorf("unexpected default listen: %s", cfg.Listen)
	}
	if cfg.Presence.SweepSchedule != "@every 30s" {
		t.Errorf("unexpected default sweep schedule: %s", cfg.Presence.SweepSchedule)
	}
	if cfg.Presence.StaleAfterSec != 0 {
		t.Error("staleness eviction should be off by default")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("first load should write the defaults file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("COLLABRELAY_LISTEN", "0.0.0.0:9000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("env should win for listen, got %s", cfg.Listen)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.Password != "hunter2" {
		t.Errorf("env should win for redis, got %+v", cfg.Redis)
	}
}

func TestSetGetValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "presence.stale_after_sec", "90"); err != nil {
		t.Fatal(err)
	}
	val, err := GetValue(path, "presence.stale_after_sec")
	if err != nil {
		t.Fatal(err)
	}
	if val != float64(90) {
		t.Errorf("expected 90, got %v (%T)", val, val)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Presence.StaleAfterSec != 90 {
		t.Errorf("expected persisted value 90, got %d", cfg.Presence.StaleAfterSec)
	}

	if err := SetValue(path, "no.such.key", "1"); err == nil {
		t.Error("unknown keys must be rejected")
	}
}

func TestSecretMasking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if err := SetValue(path, "redis.password", "supersecret"); err != nil {
		t.Fatal(err)
	}

	val, err := GetValue(path, "redis.password")
	if err != nil {
		t.Fatal(err)
	}
	if val != "***cret" {
		t.Errorf("expected masked value, got %v", val)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	values, err := ListValues(cfg, true)
	if err != nil {
		t.Fatal(err)
	}
	if values["redis.password"] != "***cret" {
		t.Errorf("list should mask secrets, got %v", values["redis.password"])
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"listen": "127.0.0.1:8787",
		"redis": map[string]any{
			"addr": "localhost:6379",
			"db":   float64(2),
		},
	}

	flat := Flatten(nested)
	if flat["redis.addr"] != "localhost:6379" {
		t.Errorf("bad flatten: %v", flat)
	}
	if flat["listen"] != "127.0.0.1:8787" {
		t.Errorf("top-level keys must survive: %v", flat)
	}

	back := Unflatten(flat)
	redis, ok := back["redis"].(map[string]any)
	if !ok || redis["db"] != float64(2) {
		t.Errorf("bad unflatten: %v", back)
	}
}
