package exception

import "errors"

// Class groups errors by how the supervisor must react to them.
type Class uint8

const (
	ClassUnknown Class = iota
	// ClassTransport covers feed/gateway disconnects. Retried with backoff.
	ClassTransport
	// ClassValidation covers malformed events and intents. Dropped and logged.
	ClassValidation
	// ClassRiskRejection covers orders blocked by the risk gate. Surfaced to the strategy.
	ClassRiskRejection
	// ClassReconciliation covers local/venue state disagreement. Halts new submissions.
	ClassReconciliation
	// ClassFatal covers config/auth failures. Cancel-all then terminate.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassValidation:
		return "validation"
	case ClassRiskRejection:
		return "risk-rejection"
	case ClassReconciliation:
		return "reconciliation"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error to its handling class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrFeedDisconnected),
		errors.Is(err, ErrGatewayDisconnected),
		errors.Is(err, ErrGatewayAmbiguous):
		return ClassTransport
	case errors.Is(err, ErrFeedMalformedEvent),
		errors.Is(err, ErrFeedStaleEvent),
		errors.Is(err, ErrFeedUnknownInstrument),
		errors.Is(err, ErrOrderInvalidIntent):
		return ClassValidation
	case errors.Is(err, ErrReconcileMismatch):
		return ClassReconciliation
	case errors.Is(err, ErrConfigInvalid),
		errors.Is(err, ErrAuthFailed),
		errors.Is(err, ErrKillSwitchTripped):
		return ClassFatal
	default:
		return ClassUnknown
	}
}
