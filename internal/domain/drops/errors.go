package drops

import "errors"

// ErrRecognitionFailed is returned when the settlement frame could not be analyzed.
var ErrRecognitionFailed = errors.New("drop recognition failed")
