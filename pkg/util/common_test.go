package util

import (
	"bytes"
	"testing"
)

func TestPrintBuildInfo(t *testing.T) {
	tests := []struct {
		name    string
		version string
		date    string
		commit  string
		want    string
	}{
		{
			name:    "all set",
			version: "v1.2.0",
			date:    "2026-01-02",
			commit:  "abc123",
			want:    "sink build version: v1.2.0\nsink build date: 2026-01-02\nsink build commit: abc123\n",
		},
		{
			name: "unset",
			want: "sink build version: N/A\nsink build date: N/A\nsink build commit: N/A\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintBuildInfo(&buf, "sink", tt.version, tt.date, tt.commit)
			if got := buf.String(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
