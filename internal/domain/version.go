package domain

import "fmt"

// Version selects the InfluxDB write protocol.
type Version string

const (
	// VersionLatest writes line protocol (InfluxDB 0.9 and later).
	VersionLatest Version = "latest"
	// VersionV08 writes column series to the 0.8 JSON API.
	VersionV08 Version = "v08"
)

// ParseVersion accepts "latest", "v08" and a few spellings of both.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "", "latest", "v09", "0.9", "line":
		return VersionLatest, nil
	case "v08", "0.8", "legacy":
		return VersionV08, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVersion, s)
	}
}
