package config

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ListValues returns the config as a flat dot-keyed map, masking secrets
// when mask is true.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	flat, err := flatConfig(cfg)
	if err != nil {
		return nil, err
	}
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue loads the config at path and returns the value for the given
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := flatConfig(cfg)
	if err != nil {
		return nil, err
	}
	val, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	if IsSecretKey(key) {
		masked := MaskSecrets(map[string]any{key: val})
		return masked[key], nil
	}
	return val, nil
}

// SetValue loads the config at path, sets the dot-separated key to the given
// value (coerced to the field's existing type), and saves the result.
func SetValue(path, key, value string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	flat, err := flatConfig(cfg)
	if err != nil {
		return err
	}
	existing, ok := flat[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	flat[key] = coerce(value, existing)

	nested := Unflatten(flat)
	data, err := json.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Save(path, updated)
}

// flatConfig round-trips the config through JSON into a flat map.
func flatConfig(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return Flatten(m), nil
}

// coerce converts a string CLI value to match the type of the existing
// field. Unparseable values fall back to the raw string so validation fails
// loudly at unmarshal time.
func coerce(value string, existing any) any {
	switch existing.(type) {
	case bool:
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	case float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return value
}
