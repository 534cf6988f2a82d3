package upload

import "errors"

// Sentinel kinds for upload errors.
var (
	ErrRejected = errors.New("report rejected")
	ErrStatus   = errors.New("unexpected status")
)
