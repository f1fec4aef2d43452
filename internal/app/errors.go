package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrBatchRunning = errors.New("a merge batch is already running")
	ErrNotStarted   = errors.New("service not started")
	ErrNoReport     = errors.New("no batch has run yet")
)
