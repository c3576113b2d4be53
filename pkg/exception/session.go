package exception

import "errors"

var (
	ErrConfigInvalid     = errors.New("session: invalid configuration")
	ErrAuthFailed        = errors.New("session: venue authentication failed")
	ErrSessionHalted     = errors.New("session: halted, new submissions blocked")
	ErrSessionShutdown   = errors.New("session: shutting down")
	ErrStrategyUnknown   = errors.New("session: unknown strategy variant")
	ErrStoreUnavailable  = errors.New("session: bar store unavailable")
	ErrQueueFull         = errors.New("session: event queue full")
	ErrQueueClosed       = errors.New("session: event queue closed")
	ErrKillSwitchTripped = errors.New("session: drawdown kill switch tripped")
)
