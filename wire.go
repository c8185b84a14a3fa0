package misc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type fixedHeaderV1 struct {
	Magic    [8]byte
	Version  uint16
	Flags    uint16
	Reserved uint32
}

func readFixedHeader(r io.Reader) (fixedHeaderV1, error) {
	var buf [fixedHeaderSizeV1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fixedHeaderV1{}, fmt.Errorf("%w: short header", ErrInvalidHeader)
		}
		return fixedHeaderV1{}, err
	}
	var h fixedHeaderV1
	copy(h.Magic[:], buf[0:8])
	h.Version = binary.LittleEndian.Uint16(buf[8:10])
	h.Flags = binary.LittleEndian.Uint16(buf[10:12])
	h.Reserved = binary.LittleEndian.Uint32(buf[12:16])
	return h, nil
}

func writeFixedHeader(w io.Writer, h fixedHeaderV1) error {
	var buf [fixedHeaderSizeV1]byte
	copy(buf[0:8], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.Version)
	binary.LittleEndian.PutUint16(buf[10:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], h.Reserved)
	_, err := w.Write(buf[:])
	return err
}

func (h fixedHeaderV1) compression() Compression {
	return Compression(h.Flags & flagCompressionMask)
}

func (h fixedHeaderV1) hasUncompressedLen() bool {
	return (h.Flags & flagHasUncompressedLen) != 0
}

func validateFixedHeader(h fixedHeaderV1) error {
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.Version != VersionV1 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Reserved != 0 {
		return fmt.Errorf("%w: reserved must be zero", ErrInvalidHeader)
	}
	if h.Flags&^(flagCompressionMask|flagHasUncompressedLen) != 0 {
		return fmt.Errorf("%w: unknown flags %#x", ErrInvalidHeader, h.Flags)
	}
	comp := h.compression()
	if _, ok := compressors[comp]; !ok && comp != CompNone {
		return fmt.Errorf("%w: unknown compression %d", ErrInvalidHeader, comp)
	}
	if (comp == CompNone) == h.hasUncompressedLen() {
		if comp == CompNone {
			return fmt.Errorf("%w: uncompressed payload must not set HAS_UNCOMPRESSED_LEN", ErrInvalidHeader)
		}
		return fmt.Errorf("%w: compressed payload must set HAS_UNCOMPRESSED_LEN", ErrInvalidHeader)
	}
	return nil
}
