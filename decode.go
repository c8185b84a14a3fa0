package misc

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// Decode reads a document in the given format from r.
//
// For FormatJSON, empty or whitespace-only input yields an empty Document and
// tagged sub-documents are rebuilt into *Array and []byte values. Integer
// numbers decode as int (uint64 if they do not fit), other numbers as
// float64, and nested objects as map[string]any.
//
// For FormatBinary, the header is validated, the payload decompressed within
// the configured Limits, and the gob stream decoded as written.
func Decode(r io.Reader, format Format, opts ...LoadOption) (Document, error) {
	return decode(r, format, newLoadConfig(opts))
}

func decode(r io.Reader, format Format, cfg loadConfig) (Document, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(r, cfg)
	case FormatBinary:
		return decodeBinary(r, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, format)
	}
}

func decodeBinary(r io.Reader, cfg loadConfig) (Document, error) {
	h, err := readFixedHeader(r)
	if err != nil {
		return nil, err
	}
	if err := validateFixedHeader(h); err != nil {
		return nil, err
	}
	stored, err := readAll(io.LimitReader(r, int64(cfg.limits.MaxFileLen)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(stored)) > cfg.limits.MaxFileLen {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrLimitExceeded, cfg.limits.MaxFileLen)
	}
	payload, err := decompressPayload(h, stored, cfg.limits.MaxUncompressedLen)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := gobDecode(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: gob: %v", ErrInvalidPayload, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// gobDecode deserializes data into out using Go's gob encoding.
func gobDecode(data []byte, out any) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(out)
}
