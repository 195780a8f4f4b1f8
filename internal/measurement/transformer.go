package measurement

import (
	"fmt"
	"strings"

	"github.com/vshulcz/influxreporter/internal/domain"
)

// Transformer maps a raw registry name to a measurement name and tags.
type Transformer interface {
	Tags(raw string) map[string]string
	MeasurementName(raw string) string
}

const (
	TransformerNoop     = "noop"
	TransformerKeyValue = "key-value"
)

// Noop keeps the name and adds no tags.
type Noop struct{}

func (Noop) Tags(string) map[string]string     { return map[string]string{} }
func (Noop) MeasurementName(raw string) string { return raw }

// KeyValue reads a dotted name as key.value pairs followed by the
// measurement name. Pairs are consumed from the front while at least three
// tokens remain, so the name keeps one or two trailing tokens.
type KeyValue struct{}

func (KeyValue) Tags(raw string) map[string]string {
	tokens := strings.Split(raw, ".")
	tags := make(map[string]string, len(tokens)/2)
	for len(tokens) >= 3 {
		tags[tokens[0]] = tokens[1]
		tokens = tokens[2:]
	}
	return tags
}

func (KeyValue) MeasurementName(raw string) string {
	tokens := strings.Split(raw, ".")
	for len(tokens) >= 3 {
		tokens = tokens[2:]
	}
	return strings.Join(tokens, ".")
}

// ParseTransformer resolves a configured transformer name.
func ParseTransformer(name string) (Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", TransformerNoop:
		return Noop{}, nil
	case TransformerKeyValue, "keyvalue", "kv":
		return KeyValue{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTransformer, name)
	}
}
