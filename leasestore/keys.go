package leasestore

import "fmt"

// Every key for one campaign carries the campaign id as a Redis hash
// tag (the "{id}" part) so a multi-key Lua script always lands on one
// cluster slot.

func waitlistKey(campaignID, priority string) string {
	return fmt.Sprintf("campaign:{%s}:waitlist:%s", campaignID, priority)
}

func limitKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:limit", campaignID)
}

func leasesKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:leases", campaignID)
}

func leaseKey(campaignID, member string) string {
	return fmt.Sprintf("campaign:{%s}:lease:%s", campaignID, member)
}

func reservedKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:reserved", campaignID)
}

func reservedLedgerKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:reserved:ledger", campaignID)
}

func promoteGateSeqKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:promote-gate:seq", campaignID)
}

func promoteGateKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:promote-gate", campaignID)
}

func fairnessKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:fairness", campaignID)
}

func coldstartKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:coldstart", campaignID)
}

func pausedKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:paused", campaignID)
}

func circuitBreakerKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:cb", campaignID)
}

func slotAvailableChannel(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:slot-available", campaignID)
}

func dialIdempotencyKey(contactID string, bucket int64) string {
	return fmt.Sprintf("dial:%s:%d", contactID, bucket)
}

func campaignStateKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:state", campaignID)
}

// PreMember and ActiveMember format the leases-set member name for a
// call id at its two lease stages (spec §3 "Leases set").
func PreMember(callID string) string   { return "pre-" + callID }
func ActiveMember(callID string) string { return callID }
