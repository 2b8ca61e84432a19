package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// countingScripter emulates the acquire/release scripts against an in-memory
// counter map.
type countingScripter struct {
	mu     sync.Mutex
	counts map[string]int
	ttls   map[string]int64
}

func newCountingScripter() *countingScripter {
	return &countingScripter{counts: map[string]int{}, ttls: map[string]int64{}}
}

func (f *countingScripter) run(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewCmd(ctx)
	key := keys[0]
	switch sha {
	case concurrencyAcquireScript.Hash():
		limit := args[0].(int)
		f.ttls[key] = args[1].(int64)
		if f.counts[key]+1 > limit {
			cmd.SetVal(int64(0))
			return cmd
		}
		f.counts[key]++
		cmd.SetVal(int64(1))
	case concurrencyReleaseScript.Hash():
		f.counts[key]--
		if f.counts[key] <= 0 {
			delete(f.counts, key)
		}
		cmd.SetVal(int64(1))
	}
	return cmd
}

func (f *countingScripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, redis.NewScript(script).Hash(), keys, args...)
}

func (f *countingScripter) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, sha, keys, args...)
}

func (f *countingScripter) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *countingScripter) EvalShaRO(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *countingScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}

func (f *countingScripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal(redis.NewScript(script).Hash())
	return cmd
}

func TestSessionCap_LimitsPerOrganization(t *testing.T) {
	ctx := context.Background()
	rdb := newCountingScripter()
	c := NewSessionCap(rdb, 2, time.Hour)

	for i := 0; i < 2; i++ {
		ok, err := c.Acquire(ctx, "o1")
		if err != nil || !ok {
			t.Fatalf("acquire %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := c.Acquire(ctx, "o1"); ok {
		t.Fatalf("third slot must be rejected")
	}
	if ok, _ := c.Acquire(ctx, "o2"); !ok {
		t.Fatalf("other organizations have their own cap")
	}

	if err := c.Release(ctx, "o1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := c.Acquire(ctx, "o1"); !ok {
		t.Fatalf("released slot should be reusable")
	}
	if got := rdb.ttls["propdial:live_sessions:o1"]; got != time.Hour.Milliseconds() {
		t.Fatalf("expected ttl in ms, got %d", got)
	}
}

func TestConcurrencyCap_Validation(t *testing.T) {
	ctx := context.Background()
	rdb := newCountingScripter()

	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "", 1, time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 1, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
	if err := NewSessionCap(rdb, 1, time.Second).Release(ctx, ""); err == nil {
		t.Fatalf("expected error for empty organization")
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	cfg := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if cfg.PoolSize != 20 || cfg.DialTimeout != 3*time.Second || cfg.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}
