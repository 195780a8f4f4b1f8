package domain

import "time"

// Point is one stored sample as received by the sink.
type Point struct {
	Database    string            `json:"database"`
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags,omitempty"`
	Fields      map[string]any    `json:"fields"`
	Time        time.Time         `json:"time"`
}

// SeriesSummary describes the stored points of one measurement.
type SeriesSummary struct {
	Database    string    `json:"database"`
	Measurement string    `json:"measurement"`
	Points      int64     `json:"points"`
	Last        time.Time `json:"last"`
}
