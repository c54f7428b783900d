package capture

import (
	"errors"

	"visors/processing/frame"
)

var (
	ErrNotOpened = errors.New("capture source could not be opened")
	ErrClosed    = errors.New("capture source closed")
)

// Source yields frames from a camera or a video file. Read reports false when
// no frame is available (device hiccup or end of stream).
type Source interface {
	Read(dst *frame.Frame) bool
	Close() error
	Name() string
}

// Rewinder is implemented by sources that can restart from their first frame.
type Rewinder interface {
	Rewind() error
}
