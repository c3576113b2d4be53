package exception

import "errors"

var (
	ErrFeedDisconnected      = errors.New("feed: transport disconnected")
	ErrFeedClosed            = errors.New("feed: subscription closed")
	ErrFeedNoInstruments     = errors.New("feed: no instruments to subscribe")
	ErrFeedUnknownInstrument = errors.New("feed: unknown instrument")
	ErrFeedMalformedEvent    = errors.New("feed: malformed market event")
	ErrFeedStaleEvent        = errors.New("feed: event time went backwards")
)
