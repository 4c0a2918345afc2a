package aggregator

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

// fakeScripter is an in-memory stand-in for a Redis client, sufficient to
// exercise RedisAggregator's HINCRBY/EVAL call sites without a live Redis.
type fakeScripter struct {
	hashes map[string]map[string]int64
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{hashes: map[string]map[string]int64{}}
}

func (f *fakeScripter) hash(key string) map[string]int64 {
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]int64{}
		f.hashes[key] = h
	}
	return h
}

func (f *fakeScripter) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	h := f.hash(key)
	h[field] += incr
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(h[field])
	return cmd
}

func (f *fakeScripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	h := f.hash(keys[0])
	pool := h["sample_pool"]
	drops := h["drops"]
	h["sample_pool"] = 0
	h["drops"] = 0
	cmd := redis.NewCmd(ctx)
	cmd.SetVal([]interface{}{itoa(pool), itoa(drops)})
	return cmd
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestRedisAggregatorAccumulatesAcrossWorkers(t *testing.T) {
	fake := newFakeScripter()
	agg := &RedisAggregator{client: fake, prefix: "test"}
	dsi := sflow.DataSourceInstance{Class: sflow.DSClassLogicalEntity, Index: 1}
	ctx := context.Background()

	// Three "workers" each contribute independently.
	if err := agg.AddSamplePool(ctx, dsi, 100); err != nil {
		t.Fatalf("AddSamplePool: %v", err)
	}
	if err := agg.AddSamplePool(ctx, dsi, 50); err != nil {
		t.Fatalf("AddSamplePool: %v", err)
	}
	if err := agg.AddDrops(ctx, dsi, 3); err != nil {
		t.Fatalf("AddDrops: %v", err)
	}

	pool, drops, err := agg.FlushAndReset(ctx, dsi)
	if err != nil {
		t.Fatalf("FlushAndReset: %v", err)
	}
	if pool != 150 {
		t.Errorf("pool = %d, want 150", pool)
	}
	if drops != 3 {
		t.Errorf("drops = %d, want 3", drops)
	}

	// A second flush with no intervening writes sees zero.
	pool2, drops2, err := agg.FlushAndReset(ctx, dsi)
	if err != nil {
		t.Fatalf("FlushAndReset: %v", err)
	}
	if pool2 != 0 || drops2 != 0 {
		t.Errorf("second flush = (%d, %d), want (0, 0)", pool2, drops2)
	}
}

func TestRedisAggregatorKeysAreIsolatedByDSI(t *testing.T) {
	fake := newFakeScripter()
	agg := &RedisAggregator{client: fake, prefix: "test"}
	ctx := context.Background()

	dsiA := sflow.DataSourceInstance{Class: sflow.DSClassLogicalEntity, Index: 1}
	dsiB := sflow.DataSourceInstance{Class: sflow.DSClassLogicalEntity, Index: 2}

	_ = agg.AddSamplePool(ctx, dsiA, 10)
	_ = agg.AddSamplePool(ctx, dsiB, 99)

	poolA, _, _ := agg.FlushAndReset(ctx, dsiA)
	if poolA != 10 {
		t.Errorf("dsiA pool = %d, want 10", poolA)
	}
	poolB, _, _ := agg.FlushAndReset(ctx, dsiB)
	if poolB != 99 {
		t.Errorf("dsiB pool = %d, want 99", poolB)
	}
}
