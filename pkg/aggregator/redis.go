// Package aggregator combines per-worker sample_pool and drop counters
// into one fleet-wide view using Redis, so a single sFlow sampler DSI
// shared by many host worker processes reports accurate totals instead
// of whatever one worker happened to accumulate locally.
//
// Grounded in the idempotent Lua-script update pattern from the
// rate-limiter's Redis persister: a single EVAL does a read-and-clear
// that would otherwise race across concurrent HINCRBY callers.
package aggregator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

// scripter abstracts the minimal surface needed from a Redis client,
// mirroring RedisEvaler from the rate-limiter's persistence layer so
// this package can be tested against a fake without a live Redis.
type scripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
}

// RedisAggregator accumulates sample_pool and drops counters per data
// source instance across however many worker processes share that DSI.
type RedisAggregator struct {
	client scripter
	prefix string
}

// NewRedisAggregator connects to addr and returns a ready-to-use
// aggregator. Keys are namespaced under prefix so multiple agent
// deployments can share one Redis instance.
func NewRedisAggregator(addr, prefix string) *RedisAggregator {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if prefix == "" {
		prefix = "sflowagent"
	}
	return &RedisAggregator{client: client, prefix: prefix}
}

func (a *RedisAggregator) key(dsi sflow.DataSourceInstance) string {
	return fmt.Sprintf("%s:sampler:%d:%d:%d", a.prefix, dsi.Class, dsi.Index, dsi.Instance)
}

// AddSamplePool atomically adds n to the shared sample_pool counter for
// dsi. Called by each worker once per event it considers for sampling,
// regardless of outcome.
func (a *RedisAggregator) AddSamplePool(ctx context.Context, dsi sflow.DataSourceInstance, n uint32) error {
	if n == 0 {
		return nil
	}
	if err := a.client.HIncrBy(ctx, a.key(dsi), "sample_pool", int64(n)).Err(); err != nil {
		return fmt.Errorf("aggregator: incr sample_pool: %w", err)
	}
	return nil
}

// AddDrops atomically adds n to the shared drops counter for dsi.
func (a *RedisAggregator) AddDrops(ctx context.Context, dsi sflow.DataSourceInstance, n uint32) error {
	if n == 0 {
		return nil
	}
	if err := a.client.HIncrBy(ctx, a.key(dsi), "drops", int64(n)).Err(); err != nil {
		return fmt.Errorf("aggregator: incr drops: %w", err)
	}
	return nil
}

// flushScript atomically reads the current sample_pool/drops totals and
// resets them to zero, so a periodic drain never double-counts a value
// another flush already consumed.
const flushScript = `
local pool = redis.call('HGET', KEYS[1], 'sample_pool') or '0'
local drops = redis.call('HGET', KEYS[1], 'drops') or '0'
redis.call('HSET', KEYS[1], 'sample_pool', 0, 'drops', 0)
return {pool, drops}
`

// FlushAndReset returns the fleet-wide sample_pool and drops totals
// accumulated for dsi since the last flush, then resets both to zero.
func (a *RedisAggregator) FlushAndReset(ctx context.Context, dsi sflow.DataSourceInstance) (samplePool, drops uint32, err error) {
	res, err := a.client.Eval(ctx, flushScript, []string{a.key(dsi)}).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("aggregator: flush eval: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("aggregator: unexpected flush result shape %T", res)
	}
	pool, err := parseCounter(vals[0])
	if err != nil {
		return 0, 0, err
	}
	dropped, err := parseCounter(vals[1])
	if err != nil {
		return 0, 0, err
	}
	return pool, dropped, nil
}

func parseCounter(v interface{}) (uint32, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("aggregator: expected string counter, got %T", v)
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("aggregator: parse counter %q: %w", s, err)
	}
	return uint32(n), nil
}
