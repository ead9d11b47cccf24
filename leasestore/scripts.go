package leasestore

import "github.com/redis/go-redis/v9"

// acquirePreScript admits a single reserved call id into the leases set
// as a pre-dial lease, only if capacity remains (spec §4.1 acquire_pre).
//
// KEYS[1] = leases set
// KEYS[2] = lease key for this member
// KEYS[3] = limit string
// ARGV[1] = member ("pre-{callId}")
// ARGV[2] = token
// ARGV[3] = ttl ms
var acquirePreScript = redis.NewScript(`
local limit = tonumber(redis.call("GET", KEYS[3]))
if not limit then
    return ""
end
local count = redis.call("SCARD", KEYS[1])
if count < limit then
    redis.call("SADD", KEYS[1], ARGV[1])
    redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
    return ARGV[2]
end
return ""
`)

// acquireFromReservationScript converts an already-reserved slot into a
// pre-dial lease (spec §4.2 step 3): decrements reserved, removes the
// ledger entry, and SADDs the pre-dial member. Unlike acquirePreScript
// it does not re-check capacity against limit, since the slot was
// already accounted for by reserve_and_promote.
//
// KEYS[1] = leases set
// KEYS[2] = lease key for this member
// KEYS[3] = reserved counter
// KEYS[4] = reserved ledger zset
// ARGV[1] = member ("pre-{callId}")
// ARGV[2] = token
// ARGV[3] = ttl ms
// ARGV[4] = ledger entry ("H:{contactId}" or "N:{contactId}")
var acquireFromReservationScript = redis.NewScript(`
redis.call("SADD", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
redis.call("ZREM", KEYS[4], ARGV[4])
local reserved = tonumber(redis.call("DECRBY", KEYS[3], 1))
if reserved < 0 then
    redis.call("SET", KEYS[3], 0)
end
return ARGV[2]
`)

// releaseScript CAS-releases a lease member (spec §4.1 release).
//
// KEYS[1] = leases set
// KEYS[2] = lease key
// ARGV[1] = member
// ARGV[2] = token
// ARGV[3] = publish channel, "" to skip
var releaseScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[2])
if stored == ARGV[2] then
    redis.call("DEL", KEYS[2])
    redis.call("SREM", KEYS[1], ARGV[1])
    if ARGV[3] ~= "" then
        redis.call("PUBLISH", ARGV[3], "slot-available")
    end
    return 1
end
return 0
`)

// renewLeaseScript CAS-extends a lease key's TTL (spec §4.1 renew).
//
// KEYS[1] = lease key
// ARGV[1] = token
// ARGV[2] = new ttl ms
var renewLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    redis.call("PEXPIRE", KEYS[1], ARGV[2])
    return 1
end
return 0
`)

// promoteScript moves a lease from pre-dial to active on answer (spec
// §4.2 step 7): SREM the pre-dial member, SADD the active member, and
// replace the lease key with an active-TTL one under the same token.
//
// KEYS[1] = leases set
// KEYS[2] = pre-dial lease key
// KEYS[3] = active lease key
// ARGV[1] = pre-dial member
// ARGV[2] = active member
// ARGV[3] = token
// ARGV[4] = active ttl ms
var promoteScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[2])
if stored ~= ARGV[3] then
    return 0
end
redis.call("SREM", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[1], ARGV[2])
redis.call("DEL", KEYS[2])
redis.call("SET", KEYS[3], ARGV[3], "PX", ARGV[4])
return 1
`)

// reserveAndPromoteScript is the central scheduling primitive (spec
// §4.3). It is one script so popping, capacity accounting, push-back
// and gate advancement are mutually atomic.
//
// KEYS[1] = waitlist:high
// KEYS[2] = waitlist:normal
// KEYS[3] = limit
// KEYS[4] = leases set
// KEYS[5] = reserved counter
// KEYS[6] = reserved ledger zset
// KEYS[7] = promote-gate:seq
// KEYS[8] = promote-gate
// KEYS[9] = fairness counter
// ARGV[1] = maxBatch
// ARGV[2] = reserveTTL ms
// ARGV[3] = gateTTL ms
// ARGV[4] = now ms
// ARGV[5] = fairness TTL ms
//
// Returns {toPromote, seq, {"<origin>:<id>", ...}}.
var reserveAndPromoteScript = redis.NewScript(`
local fairness = redis.call("INCR", KEYS[9])
redis.call("PEXPIRE", KEYS[9], ARGV[5])

local maxBatch = tonumber(ARGV[1])
local popped = {}

local function pop_n(listKey, n, origin)
    local count = 0
    while count < n do
        local v = redis.call("LPOP", listKey)
        if not v then break end
        table.insert(popped, {v, origin})
        count = count + 1
    end
    return count
end

local function fill(firstKey, firstOrigin, secondKey, secondOrigin, firstN)
    pop_n(firstKey, firstN, firstOrigin)
    local remaining = maxBatch - #popped
    while remaining > 0 do
        local before = #popped
        pop_n(secondKey, remaining, secondOrigin)
        remaining = maxBatch - #popped
        if remaining <= 0 then break end
        pop_n(firstKey, remaining, firstOrigin)
        remaining = maxBatch - #popped
        if #popped == before then break end
    end
end

if fairness % 4 ~= 0 then
    local highTarget = math.ceil(maxBatch * 0.75)
    fill(KEYS[1], "H", KEYS[2], "N", highTarget)
else
    fill(KEYS[2], "N", KEYS[1], "H", 1)
end

local limit = tonumber(redis.call("GET", KEYS[3])) or 0
local inflight = redis.call("SCARD", KEYS[4])
local reserved = tonumber(redis.call("GET", KEYS[5])) or 0
local available = limit - inflight - reserved
if available < 0 then available = 0 end

local toPromote = #popped
if toPromote > available then toPromote = available end

local promoted = {}
local pushBackHigh = {}
local pushBackNormal = {}
for i, entry in ipairs(popped) do
    if i <= toPromote then
        table.insert(promoted, entry)
    elseif entry[2] == "H" then
        table.insert(pushBackHigh, entry[1])
    else
        table.insert(pushBackNormal, entry[1])
    end
end

local seq = 0
if toPromote > 0 then
    redis.call("INCRBY", KEYS[5], toPromote)
    redis.call("PEXPIRE", KEYS[5], ARGV[2])
    for _, entry in ipairs(promoted) do
        redis.call("ZADD", KEYS[6], ARGV[4], entry[2] .. ":" .. entry[1])
    end
    seq = redis.call("INCR", KEYS[7])
    redis.call("SET", KEYS[8], seq, "PX", ARGV[3])
end

for i = #pushBackHigh, 1, -1 do
    redis.call("LPUSH", KEYS[1], pushBackHigh[i])
end
for i = #pushBackNormal, 1, -1 do
    redis.call("LPUSH", KEYS[2], pushBackNormal[i])
end

local promotedOut = {}
for _, entry in ipairs(promoted) do
    table.insert(promotedOut, entry[2] .. ":" .. entry[1])
end

return {toPromote, seq, promotedOut}
`)

// janitorScanScript reaps reservation-ledger entries older than
// orphanAge, restoring their contacts to the waitlist matching their
// recorded origin priority (spec §4.1 janitor_scan, §4.5 Janitor).
//
// KEYS[1] = reserved ledger zset
// KEYS[2] = reserved counter
// KEYS[3] = waitlist:high
// KEYS[4] = waitlist:normal
// ARGV[1] = now ms
// ARGV[2] = orphanAge ms
var janitorScanScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
local stale = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", cutoff)
local reaped = 0
for _, member in ipairs(stale) do
    local origin = string.sub(member, 1, 1)
    local id = string.sub(member, 3)
    if origin == "H" then
        redis.call("LPUSH", KEYS[3], id)
    else
        redis.call("LPUSH", KEYS[4], id)
    end
    redis.call("ZREM", KEYS[1], member)
    reaped = reaped + 1
end
if reaped > 0 then
    local reserved = tonumber(redis.call("DECRBY", KEYS[2], reaped))
    if reserved < 0 then
        redis.call("SET", KEYS[2], 0)
    end
end
return reaped
`)

// casStateScript performs the CAS-on-state campaign transition spec
// §4.6 requires.
//
// KEYS[1] = campaign state key
// ARGV[1] = expected state
// ARGV[2] = next state
var casStateScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur ~= ARGV[1] then
    return 0
end
redis.call("SET", KEYS[1], ARGV[2])
return 1
`)
