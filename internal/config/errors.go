package config

import "fmt"

// ConfigError rejects one configuration value at load time.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func invalid(field, value, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
