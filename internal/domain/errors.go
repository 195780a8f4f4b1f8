package domain

import "errors"

var (
	// ErrNoFields is returned when a measurement without fields reaches the encoder.
	ErrNoFields = errors.New("measurement has no fields")
	// ErrInvalidLine indicates a line-protocol line that could not be parsed.
	ErrInvalidLine = errors.New("invalid line protocol")
	// ErrUnknownTransformer is returned for an unsupported transformer name.
	ErrUnknownTransformer = errors.New("unknown transformer")
	// ErrUnknownPrecision is returned for an unsupported time precision.
	ErrUnknownPrecision = errors.New("unknown time precision")
	// ErrUnknownVersion is returned for an unsupported protocol version.
	ErrUnknownVersion = errors.New("unknown protocol version")
	// ErrNotFound is returned when the requested series does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDatabaseRequired is returned by the sink when a write names no database.
	ErrDatabaseRequired = errors.New("database is required")
	// ErrInvalidSeries indicates a v08 series document that could not be parsed.
	ErrInvalidSeries = errors.New("invalid series payload")
	// ErrSenderClosed is returned by senders after Close.
	ErrSenderClosed = errors.New("sender closed")
)
