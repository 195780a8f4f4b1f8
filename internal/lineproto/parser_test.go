package lineproto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/measurement"
)

func TestParse_RoundTripNameAndTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tags map[string]string
	}{
		{"cpu", nil},
		{"cpu load,01", map[string]string{"server ip": "127.0.0.1"}},
		{"projection", map[string]string{"main hero": "luke, skywalker", "type": "prod"}},
		{"a=b", map[string]string{"k": "c=d"}},
	}

	enc := NewEncoder(Milliseconds)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := measurement.New(tt.name).AddTags(tt.tags).AddField("value", 1).At(7)
			line, err := enc.Encode(*in)
			require.NoError(t, err)

			out, err := Parse(line)
			require.NoError(t, err, line)
			assert.Equal(t, in.Name, out.Name)
			assert.Equal(t, in.Tags, out.Tags)
			assert.Equal(t, int64(7), out.Timestamp)
		})
	}
}

func TestParse_FieldTypes(t *testing.T) {
	t.Parallel()

	m, err := Parse(`cpu alert=true,load=10i,ratio=0.5,reason="value above, maximum threshold",off=F,u=3u 1700000000000`)
	require.NoError(t, err)

	want := map[string]any{
		"alert":  true,
		"load":   int64(10),
		"ratio":  0.5,
		"reason": "value above, maximum threshold",
		"off":    false,
		"u":      int64(3),
	}
	require.Len(t, m.Fields, len(want))
	for _, f := range m.Fields {
		assert.Equal(t, want[f.Key], f.Value.Any(), f.Key)
	}
	assert.True(t, m.HasTime)
	assert.Equal(t, int64(1700000000000), m.Timestamp)
}

func TestParse_NoTimestamp(t *testing.T) {
	t.Parallel()

	m, err := Parse("cpu,host=a value=1")
	require.NoError(t, err)
	assert.False(t, m.HasTime)
	assert.Equal(t, "a", m.Tags["host"])
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"",
		"cpu",
		"cpu,host value=1",
		"cpu,host= value=1",
		"cpu value",
		"cpu value=",
		`cpu value="open`,
		"cpu value=abc",
		"cpu value=1xi",
		"cpu value=1 notatime",
		"cpu value=1;x=2",
	} {
		_, err := Parse(line)
		assert.True(t, errors.Is(err, domain.ErrInvalidLine), "line %q: %v", line, err)
	}
}

func TestParseBatch(t *testing.T) {
	t.Parallel()

	out, err := ParseBatch("# comment\ncpu value=1i 1\n\nmem value=2i 2\n")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "cpu", out[0].Name)
	assert.Equal(t, "mem", out[1].Name)

	_, err = ParseBatch("cpu value=1i 1\nbroken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
