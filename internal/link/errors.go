package link

import "errors"

// Link errors
var (
	ErrUnavailable  = errors.New("link: device unavailable")
	ErrNotConnected = errors.New("link: not connected")
	ErrWriteFailed  = errors.New("link: write failed")
)
