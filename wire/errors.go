package wire

import "errors"

var (
	// ErrCodec is returned when a fixed-size record has the wrong length or a malformed field.
	ErrCodec = errors.New("codec error")
	// ErrProtocol is returned for malformed packet framing.
	ErrProtocol = errors.New("protocol error")
)
