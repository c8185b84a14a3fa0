package misc

import "encoding/base64"

// EncodeBlob returns the standard base64 text form of an opaque byte blob.
func EncodeBlob(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBlob inverts EncodeBlob.
func DecodeBlob(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
