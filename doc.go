// Package misc persists structured values and offers a handful of small file
// and process utilities.
//
// # Documents
//
// A [Document] is a map of string keys to values that may include numeric
// arrays ([Array]) of any rank, including rank 0. Documents are saved in one
// of two formats:
//
//   - [FormatJSON]: a UTF-8 JSON object. Arrays are written as tagged
//     sub-documents carrying their dtype, shape and flattened data, so they
//     load back with the same dtype and shape.
//   - [FormatBinary]: a 16-byte header followed by the encoding/gob stream of
//     the document, optionally compressed with ZIP, Zstandard, LZ4 or Brotli.
//
// A tagged array looks like:
//
//	{"type": "array", "dtype": "float32", "shape": [2, 2], "data": [1, 2, 3, 4]}
//
// Basic usage:
//
//	arr, _ := misc.NewArray([]float32{1, 2, 3, 4}, 2, 2)
//	doc := misc.Document{"a": arr, "name": "run-1"}
//	if err := misc.SaveJSON("state.json", doc); err != nil {
//		return err
//	}
//	loaded, err := misc.LoadJSON("state.json")
//
// A map of the caller's shaped exactly like a tag is written wrapped as
// {"type": "map", "data": {...}} and loads back unchanged.
//
// Loading a missing path fails with an error matching [ErrNotFound]; loading
// an empty JSON file yields an empty Document.
//
// # Utilities
//
//   - [WriteText] and [ReadText] for plain text files.
//   - [WriteTSV] and [ReadTSV] for a single integer-keyed column.
//   - [ReadConfig] for declarative "name = expression" config files.
//   - [GitVersion] for a revision string of the enclosing checkout.
//   - [EncodeBlob] and [DecodeBlob] for opaque byte blobs as text.
//   - [FullName] and [LoadFromFullName] for function identity.
package misc
