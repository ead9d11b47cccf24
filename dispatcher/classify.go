package dispatcher

import (
	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/carrier"
	"github.com/dialfleet/dispatch-core/retry"
)

// classifyHangup maps a voice-pipeline hangup reason (spec §6's
// enumerated {hangup, user-ended, agent-ended, failed, no-answer,
// busy, voicemail}) onto the retry taxonomy. A normal completion
// (ok == true) needs no retry-kind classification at all.
func classifyHangup(reason string) (kind retry.FailureKind, ok bool) {
	switch reason {
	case "no-answer":
		return retry.NoAnswer, false
	case "busy":
		return retry.Busy, false
	case "voicemail":
		return retry.Voicemail, false
	case "failed":
		return retry.NetworkError, false
	case "user-ended", "agent-ended", "hangup":
		return "", true
	default:
		return retry.NetworkError, false
	}
}

// classifyDialError maps a carrier.Dial error onto the retry taxonomy
// (spec §7 "Carrier transient... classified as network_error" /
// "Carrier permanent... classified non-retryable").
func classifyDialError(err error) retry.FailureKind {
	switch {
	case errors.Is(err, carrier.ErrInvalidNumber):
		return retry.InvalidNumber
	case errors.Is(err, carrier.ErrBlocked):
		return retry.ComplianceBlock
	case errors.Is(err, carrier.ErrRateLimited),
		errors.Is(err, carrier.ErrServerError),
		errors.Is(err, carrier.ErrCircuitOpen):
		return retry.NetworkError
	default:
		return retry.NetworkError
	}
}
