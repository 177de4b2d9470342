/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package redisstore

import "github.com/redis/go-redis/v9"

// Every script touches only keys of a single address (plus global indexes), so the
// whole logical operation executes atomically on the server.

// debitScript decrements a balance field only if it stays non-negative.
// KEYS: balance. ARGV: asset, units.
var debitScript = redis.NewScript(`
local available = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if available < tonumber(ARGV[2]) then
  return {0, available}
end
return {1, redis.call('HINCRBY', KEYS[1], ARGV[1], '-' .. ARGV[2])}
`)

// createLockScript settles a stale lock, reserves funds and stores the new lock.
// KEYS: balance, lock, lock id index, deadline index.
// ARGV: id, address, from_asset, to_asset, from_units, price, created_at, expires_at, ttl, now.
var createLockScript = redis.NewScript(`
local stale = 0
local existing = redis.call('HGET', KEYS[2], 'id')
if existing then
  if tonumber(redis.call('HGET', KEYS[2], 'expires_at')) > tonumber(ARGV[10]) then
    return {-1, 0, 0}
  end
  redis.call('HINCRBY', KEYS[1], redis.call('HGET', KEYS[2], 'from_asset'), redis.call('HGET', KEYS[2], 'from_units'))
  redis.call('DEL', KEYS[2])
  redis.call('HDEL', KEYS[3], existing)
  redis.call('ZREM', KEYS[4], existing)
  stale = 1
end
local available = tonumber(redis.call('HGET', KEYS[1], ARGV[3]) or '0')
if available < tonumber(ARGV[5]) then
  return {0, available, stale}
end
local remaining = redis.call('HINCRBY', KEYS[1], ARGV[3], '-' .. ARGV[5])
redis.call('HSET', KEYS[2], 'id', ARGV[1], 'address', ARGV[2], 'from_asset', ARGV[3], 'to_asset', ARGV[4],
  'from_units', ARGV[5], 'price', ARGV[6], 'created_at', ARGV[7], 'expires_at', ARGV[8], 'ttl', ARGV[9])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[4], ARGV[8], ARGV[1])
return {1, remaining, stale}
`)

// releaseLockScript credits a lock back and deletes it. In "expire" mode the lock is
// only released once its deadline has passed.
// KEYS: lock, balance, lock id index, deadline index. ARGV: id, mode, now.
var releaseLockScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'id')
if id ~= ARGV[1] then
  redis.call('HDEL', KEYS[3], ARGV[1])
  redis.call('ZREM', KEYS[4], ARGV[1])
  return 0
end
if ARGV[2] == 'expire' and tonumber(redis.call('HGET', KEYS[1], 'expires_at')) > tonumber(ARGV[3]) then
  return 0
end
redis.call('HINCRBY', KEYS[2], redis.call('HGET', KEYS[1], 'from_asset'), redis.call('HGET', KEYS[1], 'from_units'))
redis.call('DEL', KEYS[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('ZREM', KEYS[4], ARGV[1])
return 1
`)

// consumeLockScript spends a live lock into the counter asset and appends the
// transaction record. An expired lock is credited back instead.
// KEYS: lock, balance, lock id index, deadline index, txn, address txn index.
// ARGV: id, now, credit_asset, credit_units, txn_id, txn field/value pairs...
var consumeLockScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'id')
if id ~= ARGV[1] then
  return 0
end
local expired = tonumber(redis.call('HGET', KEYS[1], 'expires_at')) <= tonumber(ARGV[2])
if expired then
  redis.call('HINCRBY', KEYS[2], redis.call('HGET', KEYS[1], 'from_asset'), redis.call('HGET', KEYS[1], 'from_units'))
else
  redis.call('HINCRBY', KEYS[2], ARGV[3], ARGV[4])
end
redis.call('DEL', KEYS[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('ZREM', KEYS[4], ARGV[1])
if expired then
  return -1
end
local fields = {}
for i = 6, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call('HSET', KEYS[5], unpack(fields))
redis.call('ZADD', KEYS[6], ARGV[2], ARGV[5])
return 1
`)

// fillOrderScript settles an open order against the owner's balance. On insufficient
// funds the order stays open and the failure is recorded on it.
// KEYS: balance, order, open index, txn, address txn index.
// ARGV: order_id, debit_asset, debit_units, credit_asset, credit_units, filled_grams,
// fill_price, now, txn_id, txn field/value pairs...
var fillOrderScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then
  return {-3, 0}
end
if status ~= 'pending' and status ~= 'partially_filled' then
  return {-1, 0}
end
if tonumber(redis.call('HGET', KEYS[2], 'expires_at')) <= tonumber(ARGV[8]) then
  return {-2, 0}
end
local available = tonumber(redis.call('HGET', KEYS[1], ARGV[2]) or '0')
if available < tonumber(ARGV[3]) then
  redis.call('HSET', KEYS[2], 'last_error', 'insufficient ' .. ARGV[2] .. ' balance', 'last_error_at', ARGV[8], 'updated_at', ARGV[8])
  return {0, available}
end
redis.call('HINCRBY', KEYS[1], ARGV[2], '-' .. ARGV[3])
redis.call('HINCRBY', KEYS[1], ARGV[4], ARGV[5])
redis.call('HSET', KEYS[2], 'status', 'filled', 'filled_grams', ARGV[6], 'fill_price', ARGV[7],
  'filled_at', ARGV[8], 'updated_at', ARGV[8], 'last_error', '', 'last_error_at', '')
redis.call('ZREM', KEYS[3], ARGV[1])
local fields = {}
for i = 10, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call('HSET', KEYS[4], unpack(fields))
redis.call('ZADD', KEYS[5], ARGV[8], ARGV[9])
return {1, available - tonumber(ARGV[3])}
`)

// cancelOrderScript moves a pending order owned by the caller to cancelled. A
// pending order past its deadline is expired instead.
// KEYS: order, open index. ARGV: address, now, order_id.
var cancelOrderScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'address')
if not owner then
  return -2
end
if owner ~= ARGV[1] then
  return -1
end
if redis.call('HGET', KEYS[1], 'status') ~= 'pending' then
  return 0
end
if tonumber(redis.call('HGET', KEYS[1], 'expires_at')) <= tonumber(ARGV[2]) then
  redis.call('HSET', KEYS[1], 'status', 'expired', 'updated_at', ARGV[2])
  redis.call('ZREM', KEYS[2], ARGV[3])
  return -3
end
redis.call('HSET', KEYS[1], 'status', 'cancelled', 'cancelled_at', ARGV[2], 'updated_at', ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[3])
return 1
`)

// expireOrderScript moves an open order past its deadline to expired.
// KEYS: order, open index. ARGV: now, order_id.
var expireOrderScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= 'pending' and status ~= 'partially_filled' then
  return 0
end
if tonumber(redis.call('HGET', KEYS[1], 'expires_at')) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'expired', 'updated_at', ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`)
