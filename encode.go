package misc

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	gob.Register(Document{})
	gob.Register(map[string]any{})
	gob.Register(map[string]string{})
	gob.Register(map[int]any{})
	gob.Register(map[int]string{})
	gob.Register([]any{})
	gob.Register(&Array{})
}

// Function variables for testing injection.
var (
	gobEncodeDocument = func(doc Document) ([]byte, error) { return gobEncode(doc) }
)

// Encode writes doc to w in the given format.
//
// FormatJSON writes a single UTF-8 JSON object. Arrays and []byte values are
// replaced, at any depth, by tagged sub-documents; integer map keys become
// decimal strings.
//
// FormatBinary writes a 16-byte fixed header followed by the gob encoding of
// doc, compressed as selected by WithCompression (none by default).
//
// Values stored in a binary document must be gob-encodable; the types listed
// on Document are registered with encoding/gob by this package.
func Encode(w io.Writer, doc Document, format Format, opts ...SaveOption) error {
	return encode(w, doc, format, newSaveConfig(opts))
}

func encode(w io.Writer, doc Document, format Format, cfg saveConfig) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, doc, cfg)
	case FormatBinary:
		return encodeBinary(w, doc, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, format)
	}
}

func encodeBinary(w io.Writer, doc Document, cfg saveConfig) error {
	if doc == nil {
		doc = Document{}
	}
	payload, err := gobEncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: gob: %v", ErrInvalidPayload, err)
	}
	flags, stored, err := compressPayload(cfg.compression, payload)
	if err != nil {
		return err
	}
	h := fixedHeaderV1{Magic: Magic, Version: VersionV1, Flags: flags}
	if err := writeFixedHeader(w, h); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// gobEncode serializes v using Go's gob encoding.
func gobEncode[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
