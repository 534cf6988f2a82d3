package queue

import "errors"

// ErrClosed is returned by producers that enqueue into a closed queue.
var ErrClosed = errors.New("queue closed")
