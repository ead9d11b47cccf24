package carrier

import "github.com/cockroachdb/errors"

// Sentinel errors a Client implementation must surface so callers can
// classify a failed Dial into the retry taxonomy (spec §6/§7).
var (
	ErrRateLimited    = errors.New("carrier: rate limited")
	ErrUnauthorized   = errors.New("carrier: unauthorized")
	ErrServerError    = errors.New("carrier: server error")
	ErrInvalidNumber  = errors.New("carrier: invalid number")
	ErrBlocked        = errors.New("carrier: blocked")
	ErrCircuitOpen    = errors.New("carrier: circuit open")
)
