package misc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvValue returns the trimmed value of key and whether it is non-blank.
func EnvValue(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// ParseBool accepts 1/0, true/false, t/f, yes/no and y/n in any case.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true, true
	case "0", "false", "f", "no", "n":
		return false, true
	}
	return false, false
}

// ParseSeconds reads a bare integer as whole seconds and anything else as a
// Go duration such as "1m30s".
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return d, nil
}
