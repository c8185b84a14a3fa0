package misc

import (
	"errors"
	"io/fs"
)

// ErrNotFound is returned when a path does not exist.
// It is fs.ErrNotExist so callers may use either with errors.Is.
var ErrNotFound = fs.ErrNotExist

var (
	ErrInvalidMagic       = errors.New("misc: invalid magic")
	ErrUnsupportedVersion = errors.New("misc: unsupported version")
	ErrInvalidHeader      = errors.New("misc: invalid fixed header")
	ErrInvalidPayload     = errors.New("misc: invalid payload")
	ErrInvalidFormat      = errors.New("misc: invalid format")
	ErrInvalidArray       = errors.New("misc: invalid array")
	ErrLimitExceeded      = errors.New("misc: limit exceeded")
	ErrInvalidTSV         = errors.New("misc: invalid tsv")
	ErrInvalidConfig      = errors.New("misc: invalid config")
	ErrUnknownFunction    = errors.New("misc: unknown function")
)
