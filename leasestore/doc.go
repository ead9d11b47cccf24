// Package leasestore is the Redis-resident data layer for campaign
// concurrency control: waitlists, the leases set, reservation counters
// and ledger, the promotion gate, and the fairness counter, together
// with the Lua scripts that mutate them atomically.
//
// This is the lowest-level component every other package builds on
// (admission, dispatcher, janitor). It is deliberately small on the Go
// side: almost all of the interesting logic runs server-side in Redis
// so that concurrent workers never race each other across a round trip.
package leasestore
