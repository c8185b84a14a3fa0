package misc

import "math"

// maxLimit keeps byte limits representable as an int64 read bound.
const maxLimit = math.MaxInt64 - 1

// Limits bounds the resources a Load may consume.
type Limits struct {
	MaxFileLen         uint64 // bytes read from disk, compressed or not
	MaxUncompressedLen uint64 // gob bytes after decompression
	MaxArrayElements   int    // elements in a single decoded array
}

func defaultLimits() Limits {
	return Limits{
		MaxFileLen:         1 << 30, // 1 GiB
		MaxUncompressedLen: 2 << 30, // 2 GiB
		MaxArrayElements:   1 << 28,
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxFileLen == 0 {
		l.MaxFileLen = d.MaxFileLen
	}
	if l.MaxUncompressedLen == 0 {
		l.MaxUncompressedLen = d.MaxUncompressedLen
	}
	if l.MaxArrayElements == 0 {
		l.MaxArrayElements = d.MaxArrayElements
	}
	l.MaxFileLen = min(l.MaxFileLen, maxLimit)
	l.MaxUncompressedLen = min(l.MaxUncompressedLen, maxLimit)
	return l
}
