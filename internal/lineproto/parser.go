package lineproto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/measurement"
)

// Parse decodes one line. The timestamp, when present, is kept in the
// units it was written in; HasTime reports whether it was present.
//
// String field values end at the next double quote since the encoder does
// not escape their interior.
func Parse(line string) (measurement.Measurement, error) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return measurement.Measurement{}, fmt.Errorf("%w: empty line", domain.ErrInvalidLine)
	}

	p := &parser{s: line}
	name, stop := p.escapedUntil(", ")
	if name == "" {
		return measurement.Measurement{}, p.fail("missing measurement name")
	}
	m := measurement.New(name)

	for stop == ',' {
		var key, val string
		key, stop = p.escapedUntil("=")
		if stop != '=' || key == "" {
			return measurement.Measurement{}, p.fail("malformed tag")
		}
		val, stop = p.escapedUntil(", ")
		if val == "" {
			return measurement.Measurement{}, p.fail("empty tag value")
		}
		m.AddTag(key, val)
	}
	if stop != ' ' {
		return measurement.Measurement{}, p.fail("missing field set")
	}

	for {
		key, ok := p.until('=')
		if !ok || key == "" {
			return measurement.Measurement{}, p.fail("malformed field")
		}
		v, err := p.fieldValue()
		if err != nil {
			return measurement.Measurement{}, err
		}
		m.SetField(key, v)
		if p.eof() {
			return *m, nil
		}
		c := p.next()
		if c == ' ' {
			break
		}
		if c != ',' {
			return measurement.Measurement{}, p.fail("unexpected character after field")
		}
	}

	raw := strings.TrimSpace(p.s[p.i:])
	if raw == "" {
		return *m, nil
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return measurement.Measurement{}, p.fail("bad timestamp " + strconv.Quote(raw))
	}
	m.At(ts)
	return *m, nil
}

// ParseBatch decodes newline separated lines, skipping blanks and comments.
func ParseBatch(payload string) ([]measurement.Measurement, error) {
	lines := strings.Split(payload, "\n")
	out := make([]measurement.Measurement, 0, len(lines))
	for n, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		out = append(out, m)
	}
	return out, nil
}

type parser struct {
	s string
	i int
}

func (p *parser) eof() bool { return p.i >= len(p.s) }

func (p *parser) next() byte {
	c := p.s[p.i]
	p.i++
	return c
}

func (p *parser) fail(msg string) error {
	return fmt.Errorf("%w: %s at offset %d", domain.ErrInvalidLine, msg, p.i)
}

// escapedUntil reads until an unescaped byte from stops, dropping escape
// backslashes. It returns the byte it stopped on, or 0 at end of input.
func (p *parser) escapedUntil(stops string) (string, byte) {
	var sb strings.Builder
	for !p.eof() {
		c := p.next()
		if c == '\\' && !p.eof() {
			sb.WriteByte(p.next())
			continue
		}
		if strings.IndexByte(stops, c) >= 0 {
			return sb.String(), c
		}
		sb.WriteByte(c)
	}
	return sb.String(), 0
}

func (p *parser) until(stop byte) (string, bool) {
	j := strings.IndexByte(p.s[p.i:], stop)
	if j < 0 {
		return "", false
	}
	out := p.s[p.i : p.i+j]
	p.i += j + 1
	return out, true
}

func (p *parser) fieldValue() (measurement.Value, error) {
	if p.eof() {
		return measurement.Value{}, p.fail("missing field value")
	}
	if p.s[p.i] == '"' {
		p.i++
		str, ok := p.until('"')
		if !ok {
			return measurement.Value{}, p.fail("unterminated string")
		}
		return measurement.String(str), nil
	}

	start := p.i
	for !p.eof() && p.s[p.i] != ',' && p.s[p.i] != ' ' {
		p.i++
	}
	raw := p.s[start:p.i]
	switch raw {
	case "t", "T", "true", "True", "TRUE":
		return measurement.Bool(true), nil
	case "f", "F", "false", "False", "FALSE":
		return measurement.Bool(false), nil
	}
	if n := len(raw); n > 1 && (raw[n-1] == 'i' || raw[n-1] == 'u') {
		iv, err := strconv.ParseInt(raw[:n-1], 10, 64)
		if err != nil {
			return measurement.Value{}, p.fail("bad integer " + strconv.Quote(raw))
		}
		return measurement.Int(iv), nil
	}
	fv, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return measurement.Value{}, p.fail("bad float " + strconv.Quote(raw))
	}
	return measurement.Float(fv), nil
}
