package hvapi

import (
	"bytes"
	"unicode/utf8"
)

// SplitNames decodes a fixed-stride name list such as the one returned for
// board and channel parameters. Decoding stops at the first empty entry, at
// the end of the buffer, or after limit names when limit is non-negative.
func SplitNames(packed []byte, stride, limit int) []string {
	if stride <= 0 {
		return nil
	}
	var names []string
	for off := 0; off < len(packed); off += stride {
		if limit >= 0 && len(names) >= limit {
			break
		}
		end := off + stride
		if end > len(packed) {
			end = len(packed)
		}
		entry := packed[off:end]
		if i := bytes.IndexByte(entry, 0); i >= 0 {
			entry = entry[:i]
		}
		if len(entry) == 0 {
			break
		}
		names = append(names, string(entry))
	}
	return names
}

// SplitPacked decodes n consecutive NUL-terminated names, the layout used
// for the system property list and the crate map model strings. Missing
// trailing entries decode as empty strings.
func SplitPacked(packed []byte, n int) []string {
	names := make([]string, 0, n)
	rest := packed
	for i := 0; i < n; i++ {
		j := bytes.IndexByte(rest, 0)
		if j < 0 {
			names = append(names, string(rest))
			rest = nil
			continue
		}
		names = append(names, string(rest[:j]))
		rest = rest[j+1:]
	}
	return names
}

// Truncate cuts s so that it fits a buffer of size bytes with its
// terminating NUL. The cut never splits a UTF-8 sequence.
func Truncate(s string, size int) string {
	if size <= 0 {
		return ""
	}
	if len(s) < size {
		return s
	}
	n := size - 1
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
