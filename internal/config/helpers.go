package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/influxreporter/internal/misc"
)

// The FromEnvOrFlag helpers resolve one setting as ENV, then CLI flag, then
// default. ENV and flag values are trimmed; blank counts as unset.

// FromEnvOrFlag resolves a string setting.
func FromEnvOrFlag(envKey, flagVal, def string) string {
	if v, ok := misc.EnvValue(envKey); ok {
		return v
	}
	return FirstNonEmpty(flagVal, def)
}

// FromEnvOrFlagBool falls back to def when ENV holds something that is not a
// boolean. A false flag cannot be told apart from an unset one.
func FromEnvOrFlagBool(envKey string, flagVal, def bool) bool {
	if raw, ok := misc.EnvValue(envKey); ok {
		if v, valid := misc.ParseBool(raw); valid {
			return v
		}
		return def
	}
	return flagVal || def
}

// FromEnvOrFlagInt ignores values below min. def is returned as is.
func FromEnvOrFlagInt(envKey string, flagVal, def, min int) int {
	if raw, ok := misc.EnvValue(envKey); ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= min {
			return n
		}
	}
	if flagVal != 0 && flagVal >= min {
		return flagVal
	}
	return def
}

// FromEnvOrFlagDuration reads ENV as seconds or a Go duration and the flag as
// seconds, where flagSentinel means "not given". The bool reports whether ENV
// or the flag was set, even when ENV failed to parse and def came back.
func FromEnvOrFlagDuration(envKey string, flagSeconds, flagSentinel int, def time.Duration) (time.Duration, bool) {
	if raw, ok := misc.EnvValue(envKey); ok {
		d, err := misc.ParseSeconds(raw)
		if err != nil {
			return def, true
		}
		return d, true
	}
	if flagSeconds == flagSentinel {
		return def, false
	}
	return time.Duration(flagSeconds) * time.Second, true
}

// FirstNonEmpty returns the first value that is not blank, trimmed.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
