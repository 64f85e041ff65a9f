// Package wire implements the text codec shared by every device link:
// one base-10 floating point value encoded as UTF-8, optionally
// newline-terminated on stream transports.
package wire

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrMalformed reports a payload that could not be decoded as a value.
// An empty payload is malformed, not zero.
var ErrMalformed = errors.New("wire: malformed value")

// ParseValue decodes a device payload. Surrounding whitespace and line
// terminators are trimmed before parsing.
func ParseValue(data []byte) (float64, error) {
	s := string(bytes.TrimSpace(data))
	if s == "" {
		return 0, ErrMalformed
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	return v, nil
}

// FormatValue encodes v with the shortest representation that parses
// back to the same float64.
func FormatValue(v float64) []byte {
	return strconv.AppendFloat(nil, v, 'g', -1, 64)
}

// FormatLine encodes v followed by a newline, one value per line.
func FormatLine(v float64) []byte {
	return append(FormatValue(v), '\n')
}
