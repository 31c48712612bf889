package adapters

import "errors"

// ErrBackpressure marks a frame dropped because the socket's send
// buffer was full.
var ErrBackpressure = errors.New("send buffer full")
