package redis

import "github.com/redis/go-redis/v9"

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// compareAndExpire resets the TTL of KEYS[1] to ARGV[2] milliseconds only while it still holds ARGV[1].
var compareAndExpire = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// recordFinished adds ARGV[1] to the finished set KEYS[1] and, only on first insert, folds each
// player into their stats hash KEYS[3..] and the ranked participant set KEYS[2].
// Per player ARGV carries participant id, score and the outcome counter ("" for none).
var recordFinished = redis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
	return 0
end
for i = 3, #KEYS do
	local base = (i - 3) * 3 + 1
	redis.call("SADD", KEYS[2], ARGV[base + 1])
	redis.call("HINCRBY", KEYS[i], "games", 1)
	redis.call("HINCRBY", KEYS[i], "sum", ARGV[base + 2])
	if ARGV[base + 3] ~= "" then
		redis.call("HINCRBY", KEYS[i], ARGV[base + 3], 1)
	end
end
return 1
`)
