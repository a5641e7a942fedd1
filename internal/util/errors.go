package util

import "errors"

var (
	ErrActivityNotFound  = errors.New("activity not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionForbidden  = errors.New("session belongs to another learner")
	ErrRecordingTooLarge = errors.New("recording exceeds upload limit")
	ErrUnsupportedMedia  = errors.New("unsupported recording format")
)
