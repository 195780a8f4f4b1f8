// Package measurement models line-protocol measurements and builds them from
// registry snapshots.
package measurement

// Field is one named value of a measurement.
type Field struct {
	Key   string
	Value Value
}

// Measurement is a named, tagged bundle of field values. Fields keep
// insertion order; encoders sort them.
type Measurement struct {
	Tags      map[string]string
	Name      string
	Fields    []Field
	Timestamp int64 // milliseconds since epoch, meaningful when HasTime
	HasTime   bool
}

// New starts a measurement with the given name and no timestamp.
func New(name string) *Measurement {
	return &Measurement{Name: name, Tags: map[string]string{}}
}

// AddTag sets a tag, replacing any previous value for key.
func (m *Measurement) AddTag(key, value string) *Measurement {
	if m.Tags == nil {
		m.Tags = map[string]string{}
	}
	m.Tags[key] = value
	return m
}

// AddTags copies every entry of tags.
func (m *Measurement) AddTags(tags map[string]string) *Measurement {
	for k, v := range tags {
		m.AddTag(k, v)
	}
	return m
}

// AddField boxes v with ValueOf and sets it under key.
func (m *Measurement) AddField(key string, v any) *Measurement {
	return m.SetField(key, ValueOf(v))
}

// SetField replaces an existing field in place or appends a new one.
func (m *Measurement) SetField(key string, v Value) *Measurement {
	for i := range m.Fields {
		if m.Fields[i].Key == key {
			m.Fields[i].Value = v
			return m
		}
	}
	m.Fields = append(m.Fields, Field{Key: key, Value: v})
	return m
}

// At pins the timestamp in milliseconds since epoch.
func (m *Measurement) At(millis int64) *Measurement {
	m.Timestamp = millis
	m.HasTime = true
	return m
}

// Field looks a field up by key.
func (m Measurement) Field(key string) (Value, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Valid reports whether the measurement may be encoded.
func (m Measurement) Valid() bool {
	return len(m.Fields) > 0
}
