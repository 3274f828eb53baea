package redisstore

import "github.com/redis/go-redis/v9"

// Deduct result codes.
const (
	deductSuccess       int64 = 1
	deductNoStock       int64 = 0
	deductInsufficient  int64 = -1
	deductInvalidAmount int64 = -2
	deductRecordExists  int64 = -3
)

// Token validation result codes.
const (
	tokenValid    int64 = 1
	tokenAbsent   int64 = 0
	tokenMismatch int64 = -1
)

// KEYS: counter, record, index. ARGV: amount, record id, record json, ttl seconds.
// The checks run in a fixed order; the counter, record and index change together or not at all.
// An existing record key aborts before the decrement so one record never covers two deductions.
var deductScript = redis.NewScript(`
local amount = tonumber(ARGV[1])
if not amount or amount <= 0 then
    return -2
end

local current = redis.call('get', KEYS[1])
if not current then
    return 0
end

current = tonumber(current)
if not current or current < amount then
    return -1
end

if redis.call('exists', KEYS[2]) == 1 then
    return -3
end

local after = redis.call('decrby', KEYS[1], amount)

local ttl = tonumber(ARGV[4])
local record = cjson.decode(ARGV[3])
record['beforeStock'] = current
record['afterStock'] = after
redis.call('setex', KEYS[2], ttl, cjson.encode(record))

redis.call('sadd', KEYS[3], ARGV[2])
redis.call('expire', KEYS[3], ttl)

return 1
`)

// KEYS: index. ARGV: record key prefix, record ids...
var batchDeleteScript = redis.NewScript(`
local deleted = 0
for i = 2, #ARGV do
    local id = ARGV[i]
    if redis.call('del', ARGV[1] .. id) == 1 then
        deleted = deleted + 1
        redis.call('srem', KEYS[1], id)
    end
end
return deleted
`)

// KEYS: index. ARGV: record key prefix, ttl seconds.
var setExpiryScript = redis.NewScript(`
local ids = redis.call('smembers', KEYS[1])
local ttl = tonumber(ARGV[2])
local updated = 0
for _, id in ipairs(ids) do
    if redis.call('expire', ARGV[1] .. id, ttl) == 1 then
        updated = updated + 1
    end
end
redis.call('expire', KEYS[1], ttl)
return updated
`)

// KEYS: index. ARGV: record key prefix. Returns {removed ids, index dropped}.
var pruneIndexScript = redis.NewScript(`
local ids = redis.call('smembers', KEYS[1])
local removed = 0
for _, id in ipairs(ids) do
    if redis.call('exists', ARGV[1] .. id) == 0 then
        redis.call('srem', KEYS[1], id)
        removed = removed + 1
    end
end
local dropped = 0
if redis.call('scard', KEYS[1]) == 0 then
    dropped = redis.call('del', KEYS[1])
end
return {removed, dropped}
`)

// KEYS: token key. ARGV: presented token.
var validateTokenScript = redis.NewScript(`
local token = redis.call('get', KEYS[1])
if not token then
    return 0
end
if token == ARGV[1] then
    redis.call('del', KEYS[1])
    return 1
end
return -1
`)
