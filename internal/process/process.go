// Package process terminates browser process trees left behind by a renderer.
package process

import "errors"

// ErrInvalidPID rejects pids that would address the caller's own process group.
var ErrInvalidPID = errors.New("invalid pid")
