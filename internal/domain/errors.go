package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicatePosition = errors.New("position already exists")
	ErrPositionClosed    = errors.New("position already closed")
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrNoRoute           = errors.New("no viable route")
	ErrLockHeld          = errors.New("lock already held")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)
