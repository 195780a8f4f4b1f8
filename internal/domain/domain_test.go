package domain

import (
	"errors"
	"testing"
)

func TestCumulativeCount(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		want   int64
		wantOK bool
	}{
		{"counter", CounterSnapshot{Count: 4}, 0, false},
		{"gauge", GaugeSnapshot{Value: 1.5}, 0, false},
		{"meter", MeterSnapshot{Count: 7}, 7, true},
		{"histogram", HistogramSnapshot{Count: 9, Distribution: Distribution{Size: 3}}, 9, true},
		{"timer", TimerSnapshot{Count: 11}, 11, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CumulativeCount(tt.snap)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("CumulativeCount = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestKinds(t *testing.T) {
	snaps := map[Kind]Snapshot{
		KindCounter:   CounterSnapshot{},
		KindGauge:     GaugeSnapshot{},
		KindMeter:     MeterSnapshot{},
		KindHistogram: HistogramSnapshot{},
		KindTimer:     TimerSnapshot{},
	}
	for want, s := range snaps {
		if got := s.Kind(); got != want {
			t.Errorf("Kind() = %q, want %q", got, want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"", VersionLatest, false},
		{"latest", VersionLatest, false},
		{"0.9", VersionLatest, false},
		{"v08", VersionV08, false},
		{"legacy", VersionV08, false},
		{"v2", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownVersion) {
				t.Errorf("ParseVersion(%q) err = %v, want ErrUnknownVersion", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVersion(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	in := map[string]any{
		"count": int64(3),
		"mean":  2.0,
		"state": "up",
		"ok":    true,
		"odd":   uint8(7),
	}
	typed := EncodeFields(in)
	if len(typed) != 5 || typed[0].Key != "count" || typed[4].Key != "state" {
		t.Fatalf("fields not ordered by key: %+v", typed)
	}
	out := DecodeFields(typed)
	if v, ok := out["count"].(int64); !ok || v != 3 {
		t.Errorf("count = %#v", out["count"])
	}
	if v, ok := out["mean"].(float64); !ok || v != 2.0 {
		t.Errorf("mean = %#v", out["mean"])
	}
	if out["state"] != "up" || out["ok"] != true {
		t.Errorf("got %v", out)
	}
	if out["odd"] != "7" {
		t.Errorf("odd = %#v, want string form", out["odd"])
	}
}
