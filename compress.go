package misc

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zipEntryName is the single entry of a zip-compressed payload.
const zipEntryName = "document.gob"

// Function variables for testing injection.
var (
	newZstdWriter = func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) }
	newZstdReader = func() (*zstd.Decoder, error) { return zstd.NewReader(nil) }
	zipCreate     = func(zw *zip.Writer, name string) (io.Writer, error) { return zw.Create(name) }
	zipClose      = func(zw *zip.Writer) error { return zw.Close() }
	readAll       = io.ReadAll
)

type compressor struct {
	compress   func(in []byte) ([]byte, error)
	decompress func(in []byte, expected uint64) ([]byte, error)
}

var compressors = map[Compression]compressor{
	CompZIP:  {compress: zipCompress, decompress: zipDecompress},
	CompZSTD: {compress: zstdCompress, decompress: zstdDecompress},
	CompLZ4: {
		compress: func(in []byte) ([]byte, error) {
			return streamCompress(in, func(w io.Writer) io.WriteCloser { return lz4.NewWriter(w) })
		},
		decompress: func(in []byte, expected uint64) ([]byte, error) {
			return limitedRead(lz4.NewReader(bytes.NewReader(in)), expected, "lz4")
		},
	},
	CompBR: {
		compress: func(in []byte) ([]byte, error) {
			return streamCompress(in, func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) })
		},
		decompress: func(in []byte, expected uint64) ([]byte, error) {
			return limitedRead(brotli.NewReader(bytes.NewReader(in)), expected, "brotli")
		},
	},
}

// compressPayload returns the header flags and stored bytes for gobBytes.
// Compressed payloads carry an 8-byte little-endian uncompressed length prefix.
func compressPayload(comp Compression, gobBytes []byte) (flags uint16, payload []byte, err error) {
	if comp == CompNone {
		return uint16(CompNone), gobBytes, nil
	}
	c, ok := compressors[comp]
	if !ok {
		return 0, nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidPayload, comp)
	}
	compressed, err := c.compress(gobBytes)
	if err != nil {
		return 0, nil, err
	}
	payload = binary.LittleEndian.AppendUint64(make([]byte, 0, 8+len(compressed)), uint64(len(gobBytes)))
	payload = append(payload, compressed...)
	return uint16(comp) | flagHasUncompressedLen, payload, nil
}

// decompressPayload inverts compressPayload, refusing to expand past maxUncompressed.
func decompressPayload(h fixedHeaderV1, payload []byte, maxUncompressed uint64) ([]byte, error) {
	comp := h.compression()
	if comp == CompNone {
		if uint64(len(payload)) > maxUncompressed {
			return nil, fmt.Errorf("%w: payload length %d exceeds limit", ErrLimitExceeded, len(payload))
		}
		return payload, nil
	}
	c, ok := compressors[comp]
	if !ok {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidPayload, comp)
	}
	if len(payload) < 8 {
		return nil, fmt.Errorf("%w: payload too short for uncompressed length", ErrInvalidPayload)
	}
	expected := binary.LittleEndian.Uint64(payload[:8])
	if expected > maxUncompressed {
		return nil, fmt.Errorf("%w: uncompressed length %d exceeds limit", ErrLimitExceeded, expected)
	}
	out, err := c.decompress(payload[8:], expected)
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) != expected {
		return nil, fmt.Errorf("%w: decompressed length %d != expected %d", ErrInvalidPayload, len(out), expected)
	}
	return out, nil
}

func zipCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zipCreate(zw, zipEntryName)
	if err != nil {
		_ = zipClose(zw)
		return nil, err
	}
	if _, err := entry.Write(in); err != nil {
		_ = zipClose(zw)
		return nil, err
	}
	if err := zipClose(zw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipDecompress requires exactly one regular entry named zipEntryName whose
// declared size matches expected.
func zipDecompress(in []byte, expected uint64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(in), int64(len(in)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("%w: zip must contain exactly one entry", ErrInvalidPayload)
	}
	zf := zr.File[0]
	if zf.Name != zipEntryName || zf.FileInfo().IsDir() {
		return nil, fmt.Errorf("%w: zip entry must be the file %s", ErrInvalidPayload, zipEntryName)
	}
	if zf.UncompressedSize64 != expected {
		return nil, fmt.Errorf("%w: zip uncompressed size %d != expected %d", ErrInvalidPayload, zf.UncompressedSize64, expected)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return limitedRead(rc, expected, "zip")
}

func zstdCompress(in []byte) ([]byte, error) {
	enc, err := newZstdWriter()
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(in, nil), nil
}

func zstdDecompress(in []byte, expected uint64) ([]byte, error) {
	dec, err := newZstdReader()
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidPayload, err)
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: zstd expanded beyond expected size", ErrInvalidPayload)
	}
	return out, nil
}

func streamCompress(in []byte, wrap func(io.Writer) io.WriteCloser) ([]byte, error) {
	var buf bytes.Buffer
	w := wrap(&buf)
	if _, err := w.Write(in); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// limitedRead reads at most expected+1 bytes from r so an oversized stream
// is detected without being fully expanded.
func limitedRead(r io.Reader, expected uint64, name string) ([]byte, error) {
	b, err := readAll(io.LimitReader(r, int64(expected)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
	}
	if uint64(len(b)) > expected {
		return nil, fmt.Errorf("%w: %s expanded beyond expected size", ErrInvalidPayload, name)
	}
	return b, nil
}
